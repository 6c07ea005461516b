package main

import "github.com/msgpilot/msgpilot/cmd"

func main() {
	cmd.Execute()
}
