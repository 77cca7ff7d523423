package main

import (
	"os"

	"github.com/appclacks/sloworker/cmd"
)

func main() {
	err := cmd.Run()
	if err != nil {
		os.Exit(1)
	}
}
