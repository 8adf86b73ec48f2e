// Package main provides the entry point for the crew CLI.
package main

import (
	"context"
	"os"

	"github.com/mrz1836/crew/internal/cli"
)

// Set at build time via ldflags.
var (
	version = ""
	commit  = ""
	date    = ""
)

func main() {
	ctx := context.Background()
	err := cli.Execute(ctx, cli.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	})
	os.Exit(cli.ExitCodeForError(err))
}
