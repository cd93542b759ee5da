// Package main provides the eZhishi FAQ chatbot server entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/melonneet/ezhishi-chatbot/internal/app"
	"github.com/melonneet/ezhishi-chatbot/internal/buildinfo"
	"github.com/melonneet/ezhishi-chatbot/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	application, err := app.Initialize(context.Background(), cfg)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to start ezhishi-chatbot %s: %v\n", buildinfo.String(), err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Server stopped: %v\n", err)
		os.Exit(1)
	}
}
