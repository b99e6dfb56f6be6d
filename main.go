package main

import (
	"github.io/gnu3ra/kernelstack/cli"
)

func main() {
	cli.Execute()
}
