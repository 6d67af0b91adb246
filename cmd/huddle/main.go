package main

import (
	"fmt"
	"os"

	"github.com/adamavenir/huddle/internal/command"
)

func main() {
	if err := command.Execute(); err != nil {
		if !command.Reported(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
