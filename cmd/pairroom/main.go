package main

import "github.com/NALLAMDEEPAK/DeepCode-sub000/internal/cli"

func main() {
	cli.Execute()
}
