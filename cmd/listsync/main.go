package main

import (
	"fmt"
	"os"

	"github.com/LeventeLantos/listsync/internal/config"
)

func main() {
	config.LoadDotEnv()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
