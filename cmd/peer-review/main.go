// cmd/peer-review/main.go
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/beartec-jpg/Ai-Peer-review/internal/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
