package main

import "github.com/neurosim-io/neurosim/cmd"

func main() {
	cmd.Execute()
}
