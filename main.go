package main

import (
	"os"

	"github.com/Niranjanakamaraj/InvestigationAssistent/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
