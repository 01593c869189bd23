// Package main is the entry point for the mediaenrich CLI.
package main

import "mediaenrich/cmd"

func main() {
	cmd.Execute()
}
