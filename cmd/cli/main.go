// Package main is the entry point for the iamctl binary.
package main

import (
	"os"

	cli "tenant-rbac/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
