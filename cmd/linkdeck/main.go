package main

import (
	"context"
	"log"
	"os"

	"github.com/MrSnakeDoc/linkdeck/internal/cli"
)

func main() {
	if err := cli.Run(context.Background(), os.Args); err != nil {
		log.Fatalf("❌ linkdeck failed: %v", err)
	}
}
