package main

import "github.com/jmcleod/tablehand/cmd/tablehand/cmd"

func main() {
	cmd.Execute()
}
