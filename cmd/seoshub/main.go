package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"seoshub/internal/config"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./dev.yaml", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		log.Fatalf("runtime init failed: %v", err)
	}
	defer rt.Close()

	log.Printf("seoshub starting: %d internal tasks booted", rt.kernel.TaskCount())

	go func() {
		if err := rt.serveWeb(ctx); err != nil {
			log.Printf("hubweb stopped: %v", err)
			cancel()
		}
	}()

	rt.kernel.Run(ctx)
	log.Printf("seoshub stopping")
}
