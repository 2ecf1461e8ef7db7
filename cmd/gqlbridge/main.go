// Command gqlbridge runs the GraphQL subscription bridge: it maintains
// GraphQL-over-WebSocket subscriptions against a remote API, caches the
// latest payload per subscription, and serves the snapshots through a
// local REST gateway.
package main

import (
	"fmt"
	"os"
	"runtime"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	Execute()
}
