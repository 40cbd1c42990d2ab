package main

import "github.com/tessro/cassette/internal/cli"

func main() {
	cli.Execute()
}
