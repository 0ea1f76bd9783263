package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	root := buildRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "comfyd:", err)
		os.Exit(1)
	}
}
