// cmd/reelsctl/main.go
// Package main implements reelsctl, the operator CLI of the reels service.
// It talks to the document store directly using the service's configuration.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
