package main

import "github.com/yeremiapane/restaurant-core/cmd"

func main() {
	cmd.Execute()
}
