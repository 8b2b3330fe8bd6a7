package main

import "socket-client/cmd/socketclient/cmd"

var version = "dev"

func main() {
	cmd.Execute(version)
}
