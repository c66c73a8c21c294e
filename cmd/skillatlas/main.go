package main

import (
	"log"

	"github.com/skillatlas/skillatlas/internal/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}
	defer application.Close()

	if err := application.Run(); err != nil {
		log.Fatalf("application terminated: %v", err)
	}
}
