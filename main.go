package main

import "infoblox-sync/cmd"

func main() {
	cmd.Execute()
}
