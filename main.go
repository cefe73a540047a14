package main

import "github.com/nextlevelbuilder/tsagent/cmd"

func main() {
	cmd.Execute()
}
