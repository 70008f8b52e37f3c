package main

import "github.com/scottbrough/bugbounty-framework/cmd"

func main() {
	cmd.Execute()
}
