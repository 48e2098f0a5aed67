package main

import "fuelstation/backend/internal/cli"

func main() {
	cli.Execute()
}
