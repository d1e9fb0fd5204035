// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuGH/chatdj/internal/config"
	"gopkg.in/yaml.v3"
)

const redacted = "***"

func runConfigCLI(args []string) int {
	return runConfigCLITo(os.Stdout, os.Stderr, args)
}

func runConfigCLITo(stdout, stderr io.Writer, args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printConfigUsage(stderr)
		return 0
	}

	switch args[0] {
	case "validate":
		return runConfigValidate(stdout, stderr, args[1:])
	case "dump":
		return runConfigDump(stdout, stderr, args[1:])
	default:
		fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printConfigUsage(stderr)
		return 2
	}
}

func printConfigUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  chatdj config validate [--file|-f config.yaml]")
	fmt.Fprintln(w, "  chatdj config dump --effective [--file|-f config.yaml] [--format=yaml|json]")
}

func resolveDefaultConfigPath() string {
	dataDir := strings.TrimSpace(config.ParseString("CHATDJ_DATA_DIR", ""))
	if dataDir == "" {
		dataDir = config.Defaults().DataDir
	}
	autoPath := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(autoPath); err == nil {
		return autoPath
	}
	return ""
}

func runConfigValidate(stdout, stderr io.Writer, args []string) int {
	fs := flag.NewFlagSet("chatdj config validate", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var file string
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	configPath := strings.TrimSpace(file)
	if configPath == "" {
		configPath = resolveDefaultConfigPath()
	}
	if configPath == "" {
		fmt.Fprintln(stderr, "Error: --file is required (no default config.yaml found in $CHATDJ_DATA_DIR)")
		return 2
	}

	loader := config.NewLoader(configPath, appVersion)
	if _, err := loader.Load(); err != nil {
		fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", configPath, err)
		return 1
	}

	fmt.Fprintf(stdout, "✓ %s is valid\n", configPath)
	return 0
}

func runConfigDump(stdout, stderr io.Writer, args []string) int {
	fs := flag.NewFlagSet("chatdj config dump", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var file string
	var format string
	var effective bool

	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	fs.StringVar(&format, "format", "yaml", "output format: yaml or json")
	fs.BoolVar(&effective, "effective", false, "dump effective configuration (defaults + file + env)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if !effective {
		fmt.Fprintln(stderr, "Error: --effective is required")
		return 2
	}

	configPath := strings.TrimSpace(file)
	if configPath == "" {
		configPath = resolveDefaultConfigPath()
	}

	loader := config.NewLoader(configPath, appVersion)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", configPath, err)
		return 1
	}
	redactSecrets(&cfg)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			fmt.Fprintf(stderr, "Failed to encode YAML: %v\n", err)
			return 1
		}
		_ = enc.Close()
		return 0
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cfg); err != nil {
			fmt.Fprintf(stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	default:
		fmt.Fprintf(stderr, "Unsupported format: %s (use yaml or json)\n", format)
		return 2
	}
}

func redactSecrets(cfg *config.AppConfig) {
	if cfg.Store.Redis.Password != "" {
		cfg.Store.Redis.Password = redacted
	}
}
