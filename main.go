// Package main provides the entry point for falcomplot.
package main

import (
	"fmt"
	"os"

	"falcomplot/internal/cli"
	"falcomplot/ui/mainwindow"
)

func main() {
	if err := cli.Execute(mainwindow.NewViewCommand()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
