package main

import (
	"os"

	"github.com/anatolykoptev/go-xclient/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
