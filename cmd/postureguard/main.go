package main

import "postureguard/cmd"

func main() {
	cmd.Execute()
}
