package main

import "github.com/drover-project/drover/internal/cli"

func main() {
	cli.Execute()
}
