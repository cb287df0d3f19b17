// Package main provides the entry point for the prefind CLI.
package main

import (
	"os"

	"github.com/nzp/logfind/internal/cli"
)

func main() {
	os.Exit(cli.Execute(cli.Prefind))
}
