package main

import "mediaserver/cmd"

func main() {
	cmd.Execute()
}
