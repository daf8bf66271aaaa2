package main

import "github.com/taoyao-code/xbee-digimesh/internal/cli"

func main() {
	cli.Execute()
}
