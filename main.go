// Document Locker - command-line client for the locker file API.
//
// Build with: go build -ldflags "-X github.com/document-locker/locker/internal/version.Version=vX.Y.Z" .
package main

import (
	"os"

	"github.com/document-locker/locker/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
