package main

import (
	"fmt"
	"os"

	"gitlab.com/stemma-project/stemma/internal/cli/stemma"
)

func main() {
	if err := stemma.NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}
