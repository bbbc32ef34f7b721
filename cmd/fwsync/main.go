package main

import "github.com/oshokin/fwsync/cmd/fwsync/cmd"

func main() {
	cmd.Execute()
}
