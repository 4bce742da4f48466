package main

import (
	"fmt"
	"os"

	"github.com/tuannm99/ftstab/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ftstab:", err)
		os.Exit(cli.ExitCode(err))
	}
}
