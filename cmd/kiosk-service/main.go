package main

import (
	"log"

	"github.com/cortex-x/go-price-check-kiosk/internal/app"
)

func main() {
	service := app.New()
	if err := service.Err(); err != nil {
		log.Fatalf("Failed to start kiosk service: %v", err)
	}

	// Run blocks until SIGINT/SIGTERM, then stops hooks in reverse order.
	service.Run()
}
