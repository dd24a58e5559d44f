package main

import (
	"os"

	"github.com/jardins/ghlsync/internal/cli"
)

func main() {
	cli.InitCLI()
	os.Exit(cli.ExecuteWithErrorCode(os.Args[1:]))
}
