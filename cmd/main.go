package main

import "deepsite_server/internal/cli"

func main() {
	cli.Execute()
}
