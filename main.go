package main

import "github.com/tcassar-diss/btrace/internal/cli"

func main() {
	cli.Execute()
}
