package main

import "github.com/con-solidation/cmd"

func main() {
	cmd.Execute()
}
