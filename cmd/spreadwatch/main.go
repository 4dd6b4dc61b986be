package main

import "spreadwatch/internal/cli"

func main() {
	cli.Execute()
}
