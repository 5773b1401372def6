package main

import (
	"fmt"
	"os"

	"todoTracker/internal/app"
)

func main() {
	if err := newRootCmd(app.OpenStore).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
