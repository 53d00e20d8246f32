// Package main is the single-binary entrypoint for Astra.
package main

import "github.com/astra-mentor/astra/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
