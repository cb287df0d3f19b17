// Package main provides the entry point for the logfind CLI.
package main

import (
	"os"

	"github.com/nzp/logfind/internal/cli"
)

func main() {
	os.Exit(cli.Execute(cli.Logfind))
}
