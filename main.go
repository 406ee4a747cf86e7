package main

import (
	"os"

	"github.com/giovaniif/e-commerce/inventory/cmd/api"
)

func main() {
	if err := api.StartServer(); err != nil {
		os.Exit(1)
	}
}
