package main

import (
	"fmt"
	"os"

	"mileage/cmd"
)

func main() {
	if err := cmd.RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "mileage: %v\n", err)
		os.Exit(1)
	}
}
