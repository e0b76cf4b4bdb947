package main

import (
	"log"
	"os"

	"mt5Assistant/internal/cli"
)

func main() {
	if err := cli.NewFetchRatesCommand().Execute(); err != nil {
		log.Printf("Error fetching rates: %v", err)
		os.Exit(1)
	}
}
