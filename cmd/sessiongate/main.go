// Command sessiongate serves the authentication HTTP API and manages roles.
//
//	sessiongate serve [flags]
//	sessiongate grant-role --email user@example.com --role ADMIN [flags]
package main

import (
	"fmt"
	"os"
)

const usage = `usage:
  sessiongate serve [flags]
  sessiongate grant-role --email EMAIL --role ADMIN|USER [flags]
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "sessiongate:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cmd := "serve"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		return serve(args)
	case "grant-role":
		return grantRole(args)
	case "help":
		fmt.Print(usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}
