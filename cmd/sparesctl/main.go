// Command sparesctl runs imports and context maintenance against the
// inventory store from the command line.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(newPostgresApp()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
