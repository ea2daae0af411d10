// Command pmrag answers questions from a personal library of saved PubMed
// abstracts. It provides a CLI interface (via Cobra) and an HTTP server for
// the browser client.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/pmrag-go/cmd/pmrag/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
