// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fsutil keeps file access under a fixed root directory.
package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrEscapesRoot is returned when a target resolves outside its root.
var ErrEscapesRoot = errors.New("path escapes root")

// ConfineRelPath joins root and rel and checks that the result, after
// resolving symlinks, is still underneath root. A root that does not exist
// yet is accepted as-is; nothing below it can be a symlink.
func ConfineRelPath(root, rel string) (string, error) {
	if strings.Contains(rel, "\\") {
		return "", fmt.Errorf("%w: backslash in %q", ErrEscapesRoot, rel)
	}
	clean := filepath.Clean(rel)
	if filepath.IsAbs(clean) || escapes(clean) {
		return "", fmt.Errorf("%w: %q", ErrEscapesRoot, rel)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("invalid root: %w", err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if errors.Is(err, fs.ErrNotExist) {
		return filepath.Join(absRoot, clean), nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}

	full := filepath.Join(realRoot, clean)
	real, err := resolve(full)
	if err != nil {
		return "", err
	}
	inside, err := filepath.Rel(realRoot, real)
	if err != nil || escapes(inside) {
		return "", fmt.Errorf("%w: %s", ErrEscapesRoot, real)
	}
	return full, nil
}

// resolve follows symlinks in p. A missing leaf resolves through its parent.
func resolve(p string) (string, error) {
	if _, err := os.Lstat(p); err == nil {
		rp, err := filepath.EvalSymlinks(p)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", p, err)
		}
		return rp, nil
	}
	dir := filepath.Dir(p)
	rp, err := filepath.EvalSymlinks(dir)
	if err != nil {
		if _, statErr := os.Stat(dir); statErr == nil {
			return "", fmt.Errorf("resolve parent %s: %w", dir, err)
		}
		return p, nil
	}
	return filepath.Join(rp, filepath.Base(p)), nil
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
