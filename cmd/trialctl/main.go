package main

import (
	"fmt"
	"os"
)

var exit = os.Exit

func main() {
	if err := newRootCmd(productionDeps).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exit(1)
	}
}
