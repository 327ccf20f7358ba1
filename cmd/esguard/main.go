package main

import "github.com/vietddude/esguard/internal/cli"

func main() {
	cli.Execute()
}
