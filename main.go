package main

import "chatlens/cmd"

func main() {
	cmd.Execute()
}
