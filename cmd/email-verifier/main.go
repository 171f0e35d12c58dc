package main

import "github.com/mikey/email-verifier/internal/cli"

func main() {
	cli.Execute()
}
