// Command agentbridge drives one ACP coding agent from a terminal.
//
// Usage:
//
//	agentbridge [flags] -- <agent> [args...]
//
// Each stdin line is sent as a prompt; lines starting with "/" are commands
// (/allow, /cancel, /quit, /help). Agent activity is printed as it streams.
package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
)

var version = "dev"

func main() {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	os.Exit(Run(os.Stdin, os.Stdout, os.Stderr, os.Args, env, sigCh))
}
