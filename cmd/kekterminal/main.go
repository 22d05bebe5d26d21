package main

import "github.com/dev-bhaskar8/kekterminal/internal/cli"

func main() {
	cli.Execute()
}
