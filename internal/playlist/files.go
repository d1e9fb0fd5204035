// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playlist

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/ManuGH/chatdj/internal/domain/playback/model"
	"github.com/ManuGH/chatdj/internal/fsutil"
	xglog "github.com/ManuGH/chatdj/internal/log"
	"github.com/google/renameio/v2"
)

const ext = ".json"

var nameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 _.-]{0,63}$`)

// Files stores named playlists as <dir>/<name>.json.
type Files struct {
	dir string
}

// NewFiles returns a store rooted at dir. The directory is created on the
// first save.
func NewFiles(dir string) *Files {
	return &Files{dir: dir}
}

func (f *Files) path(name string) (string, error) {
	name = strings.TrimSpace(name)
	if !nameRe.MatchString(name) || strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	p, err := fsutil.ConfineRelPath(f.dir, name+ext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	return p, nil
}

// Save atomically replaces the named playlist.
func (f *Files) Save(name string, items []model.QueueItem) error {
	path, err := f.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.dir, 0o750); err != nil {
		return fmt.Errorf("create playlist dir: %w", err)
	}

	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o640))
	if err != nil {
		return fmt.Errorf("create pending playlist file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logger := xglog.WithComponent("playlist")
			logger.Debug().Err(err).Msg("cleanup pending playlist file")
		}
	}()

	if err := Encode(pendingFile, items); err != nil {
		return fmt.Errorf("write playlist data: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace playlist file: %w", err)
	}

	logger := xglog.WithComponent("playlist")
	logger.Info().
		Str(xglog.FieldEvent, "playlist.saved").
		Str("name", name).
		Int(xglog.FieldQueueLen, len(items)).
		Msg("playlist saved")
	return nil
}

// Load reads the named playlist.
func (f *Files) Load(name string) ([]model.QueueItem, error) {
	path, err := f.path(name)
	if err != nil {
		return nil, err
	}
	fh, err := os.Open(path) // #nosec G304 -- name is validated against nameRe
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return nil, fmt.Errorf("open playlist: %w", err)
	}
	defer fh.Close()
	return Decode(fh)
}

// List returns saved playlist names, sorted.
func (f *Files) List() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ext)
		if nameRe.MatchString(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
