package main

import "github.com/CMSgov/dpc-portal/cmd"

func main() {
	cmd.Execute()
}
