package main

import "bkdict/cmd"

func main() {
	cmd.Execute()
}
