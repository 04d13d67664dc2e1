package main

import "validator-commission-alerts/internal/cli"

func main() {
	cli.Execute()
}
