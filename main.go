package main

import "github.com/derickschaefer/emdash/cmd"

func main() {
	cmd.Execute()
}
