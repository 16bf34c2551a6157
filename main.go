package main

import "github.com/m16c-tools/m16cflash/cmd"

func main() {
	cmd.Execute()
}
