package main

import (
	"os"

	"github.com/cytoreason/stampede/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
