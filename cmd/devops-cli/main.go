package main

import (
	"os"

	"github.com/digitalworks2020/devops-cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
