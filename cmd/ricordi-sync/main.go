// Ricordi Sync - client for the ricordi photo memory service
package main

import (
	"os"

	"github.com/ricordi-app/ricordi-sync/internal/cli"
)

// Version information - injected via LDFLAGS for release builds
var (
	Version   = "v1.2.0"
	BuildTime = "2026-08-29"
)

func main() {
	cli.Version = Version
	cli.BuildTime = BuildTime

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
