package main

import "scribe/cmd"

func main() {
	cmd.Execute()
}
