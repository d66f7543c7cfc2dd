package main

import (
	"os"

	"github.com/lydakis/mcpwire/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
