package main

import "sacraltrack/cmd"

func main() {
	cmd.Execute()
}
