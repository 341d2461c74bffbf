package main

import "github.com/openann19/offlineq/cmd"

func main() {
	cmd.Run()
}
