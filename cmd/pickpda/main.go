// Command pickpda is the handheld operator client. It mirrors the server's
// order set over the event stream, drives the picking workflow as a
// terminal UI, and decodes handoff codes from the device camera's frame
// spool.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"pickflow/infrastructure/orderapi"
	"pickflow/models"
	"pickflow/picking"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	logFile, err := os.OpenFile("pickpda.log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Fatalf("Open log file: %v", err)
	}
	defer logFile.Close()
	logger := slog.New(slog.NewTextHandler(logFile, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := orderapi.NewClient(cfg.Server.URL, cfg.Server.Actor, logger)
	go func() {
		if err := client.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("order feed stopped", slog.String("error", err.Error()))
		}
	}()

	session := picking.NewSession(client, client.Orders())

	// The feed goroutine hands snapshots to the TUI event loop through this
	// channel; the session itself is only ever touched by Update.
	snaps := make(chan []models.Order, 1)
	unsubscribe := client.Subscribe(func(orders []models.Order) {
		for {
			select {
			case snaps <- orders:
				return
			case <-snaps:
				// drop the stale snapshot, keep the newest
			}
		}
	})
	defer unsubscribe()

	p := tea.NewProgram(newModel(cfg, session, snaps), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("Run UI: %v", err)
	}
}
