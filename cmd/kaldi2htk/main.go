package main

import (
	"os"

	"github.com/ieee0824/kaldi2htk/cmd/kaldi2htk/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
