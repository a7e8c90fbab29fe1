// Package main provides the entry point for the apollo CLI.
package main

import (
	"fmt"
	"os"

	"github.com/apollo-chat/apollo/cmd/apollo/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
