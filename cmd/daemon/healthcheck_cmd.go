// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// probePaths maps -mode to the endpoint a container probe should hit.
var probePaths = map[string]string{
	"live":  "/healthz",
	"ready": "/readyz",
}

func runHealthcheckCLI(args []string) int {
	return runHealthcheck(os.Stdout, os.Stderr, args)
}

// runHealthcheck exits 0 when the probe answers 200, 1 when it does not and
// 2 on bad flags.
func runHealthcheck(stdout, stderr io.Writer, args []string) int {
	fs := flag.NewFlagSet("healthcheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	mode := fs.String("mode", "ready", "probe to run: ready or live")
	addr := fs.String("addr", "localhost:8088", "daemon API address")
	timeout := fs.Duration("timeout", 5*time.Second, "give up after this long")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	path, ok := probePaths[*mode]
	if !ok {
		fmt.Fprintf(stderr, "unknown mode %q\n", *mode)
		return 2
	}

	resp, err := (&http.Client{Timeout: *timeout}).Get("http://" + *addr + path)
	if err != nil {
		fmt.Fprintf(stderr, "%s probe: %v\n", *mode, err)
		return 1
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(stderr, "%s probe: %s\n", *mode, resp.Status)
		return 1
	}
	fmt.Fprintf(stdout, "%s probe ok\n", *mode)
	return 0
}
