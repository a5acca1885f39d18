package main

import (
	"context"
	"os"

	"orthotracker/cmd"
)

func main() {
	if err := cmd.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
