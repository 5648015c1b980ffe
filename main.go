package main

import "rover-bridge/cmd"

func main() {
	cmd.Execute()
}
