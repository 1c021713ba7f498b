package main

import (
	"os"

	"github.com/tkingovr/portal/cmd/portal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
