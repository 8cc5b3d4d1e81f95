// Command kcache is a local knowledge cache with hybrid search.
package main

import (
	"os"

	"github.com/custodia-labs/kcache/internal/adapters/driving/cli"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.SetVersion(version)
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
