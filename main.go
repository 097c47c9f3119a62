package main

import "github.com/streambinder/youterm/cmd"

func main() {
	cmd.Execute()
}
