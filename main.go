package main

import (
	"os"

	"github.com/btorch/btaudiod/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		os.Exit(1)
	}
}
