package main

import "liveclass/cmd/liveclass/cmd"

func main() {
	cmd.Execute()
}
