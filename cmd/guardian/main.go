package main

import (
	"os"

	"github.com/msto63/guardian/cmd/guardian/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
