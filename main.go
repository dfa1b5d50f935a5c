package main

import "github.com/aurelle/picflow/cmd"

func main() {
	cmd.Execute()
}
