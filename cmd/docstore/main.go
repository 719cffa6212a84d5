/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package main provides docstore, a command line client that provisions
// databases and collections and manages the documents stored in them.
package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/suparena/docstore/internal/cli"
)

func main() {
	environ := os.Environ()
	env := make(map[string]string, len(environ))
	for _, e := range environ {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	os.Exit(cli.Run(os.Stdin, os.Stdout, os.Stderr, os.Args, env, sigCh))
}
