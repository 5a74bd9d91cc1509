package main

import "futures-sim-bot/internal/cli"

func main() {
	cli.Execute()
}
