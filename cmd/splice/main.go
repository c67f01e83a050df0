package main

import "github.com/bobarin/interject/internal/cli"

func main() {
	cli.Main()
}
