package main

import "rl-verifier/internal/cli"

func main() {
	cli.Execute()
}
