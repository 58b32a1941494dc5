package main

import "consolida/internal/cli"

func main() {
	cli.Execute()
}
