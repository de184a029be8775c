package main

import (
	"os"

	"github.com/dshills/promptcoach/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
