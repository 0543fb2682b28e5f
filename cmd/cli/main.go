package main

import "accounthub/cmd/cli/command"

func main() {
	command.Execute()
}
