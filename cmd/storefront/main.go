package main

import "github.com/jacentio/storefront/cmd/storefront/commands"

func main() {
	commands.Execute()
}
