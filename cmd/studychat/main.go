// Command studychat is a terminal client for the study assistant server.
package main

import "github.com/diogo/studychat/internal/commands"

func main() {
	commands.Execute()
}
