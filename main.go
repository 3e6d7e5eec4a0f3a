package main

import "github.com/KaramelBytes/climascope/cmd"

func main() {
	cmd.Execute()
}
