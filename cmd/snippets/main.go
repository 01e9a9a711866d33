// Command snippets runs the snippet-sharing API and its admin tasks.
//
//	snippets serve                     start the HTTP server
//	snippets createsuperuser -u admin  bootstrap an administrator
//	snippets languages | styles        list highlighter choices
package main

import (
	"fmt"
	"os"
)

// Build information, set via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	if err := App().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
