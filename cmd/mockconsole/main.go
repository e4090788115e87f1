package main

import (
	"log"

	"github.com/aussiebroadwan/pulsarconsole/internal/app"
)

func main() {
	cfg := app.LoadMockConfig()

	application, err := app.NewMock(cfg)
	if err != nil {
		log.Fatalf("failed to initialize mock backend: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
