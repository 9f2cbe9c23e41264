package main

import (
	"log"

	"objectsguesser/internal/app"
	"objectsguesser/internal/service/ai/opencv"
)

func main() {
	application, err := app.NewApp(opencv.Load)
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
