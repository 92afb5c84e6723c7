// Package main is the entry point for the teller command line.
package main

import "github.com/zapponejosh/teller/internal/cli"

func main() {
	cli.Execute()
}
