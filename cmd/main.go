// Package main is the entry point for the library-events service.
package main

import "github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/cli"

func main() {
	cli.Execute()
}
