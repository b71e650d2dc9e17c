package main

import "github.com/butykaidavid/read-rival-quest/cli"

func main() {
	cli.Execute()
}
