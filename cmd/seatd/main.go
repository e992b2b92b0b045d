package main

import "github.com/iliyamo/seat-block-booking/internal/cli"

func main() {
	cli.Execute()
}
