package main

import "github.com/opengrants/walletd/internal/cli"

func main() {
	cli.Execute()
}
