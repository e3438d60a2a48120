package main

import (
	"os"

	"github.com/masonry-build/masonry/pkg/cli"
)

// version is set at build time via -ldflags
var version = "dev"

func main() {
	err := cli.Execute(version)
	if err != nil {
		os.Stderr.WriteString("masonry: " + err.Error() + "\n")
	}
	os.Exit(cli.ExitCode(err))
}
