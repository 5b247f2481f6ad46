package main

import "github.com/nordbok/nordbok/internal/cli"

func main() {
	cli.Execute()
}
