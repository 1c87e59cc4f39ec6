// habitctl evaluates habits described in a YAML file without touching the
// database. Output is JSON (default) or a table on stdout; --watch keeps
// re-evaluating while the file is edited.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
