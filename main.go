package main

import "github.com/Skarlso/drone-pilot/cmd"

func main() {
	cmd.Execute()
}
