package main

import (
	"os"

	"github.com/pkgreview/pkgreview/pkg/cli"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(cli.Execute(version))
}
