// Package main is the entrypoint for the datatags CLI.
// The CLI lints tag schemas, validates captured transitions, checks
// access decisions, inspects SQL, and audits live stores for coverage.
package main

import (
	"os"

	"github.com/harperz567/food-app-qa/internal/cli"
)

// Build information, set via ldflags.
var (
	version = ""
	commit  = ""
	date    = ""
)

func main() {
	cli.SetVersionInfo(version, commit, date)
	os.Exit(cli.New().Execute())
}
