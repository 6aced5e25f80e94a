package main

import "github/chapool/hw-keyring/cmd"

func main() {
	cmd.Execute()
}
