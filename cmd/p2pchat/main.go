// Package main is the entrypoint for the p2pchat node.
package main

import "p2pchat/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
