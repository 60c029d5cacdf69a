// Command rehoboam runs the Rehoboam fleet observability and
// orchestration engine.
package main

import (
	"fmt"
	"os"

	"github.com/rehoboam-dev/rehoboam/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
