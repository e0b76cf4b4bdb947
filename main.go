package main

import (
	"log" // Use standard log only for errors surfaced before the logger is set up
	"os"

	"mt5Assistant/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Printf("FATAL: %v", err)
		os.Exit(1)
	}
}
