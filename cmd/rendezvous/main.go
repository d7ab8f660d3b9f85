// Command rendezvous runs the standalone HTTP room service, split into its
// own binary since this repo has no desktop shell to fall back to.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/junowen-net/core/internal/config"
	"github.com/junowen-net/core/internal/rendezvous"
)

var (
	dataDir = flag.String("dir", ".", "directory holding rendezvous.json config and the room store")
	version = flag.Bool("version", false, "show version")
)

var appVersion = "dev"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("rendezvous v%s\n", appVersion)
		return
	}

	absDir, err := filepath.Abs(*dataDir)
	if err != nil {
		log.Fatalf("invalid -dir: %v", err)
	}
	if stat, err := os.Stat(absDir); err != nil || !stat.IsDir() {
		log.Fatalf("directory does not exist: %s", absDir)
	}

	cfgPath := filepath.Join(absDir, "rendezvous.json")
	cfg, created, err := config.Ensure(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if created {
		log.Printf("rendezvous: wrote default config to %s", cfgPath)
	}

	storePath := cfg.Rendezvous.StorePath
	if !filepath.IsAbs(storePath) {
		storePath = filepath.Join(absDir, storePath)
	}

	store, closeStore, err := rendezvous.OpenStore(cfg.Rendezvous.StoreDriver, storePath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer closeStore()

	ttl := time.Duration(cfg.Rendezvous.TTLSec) * time.Second
	keep := time.Duration(cfg.Rendezvous.KeepIntervalSec) * time.Second
	srv := rendezvous.NewServer(store, ttl, keep, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("rendezvous: shutting down")
		cancel()
	}()

	log.Printf("rendezvous: listening on %s (store=%s)", cfg.Rendezvous.ListenAddr, cfg.Rendezvous.StoreDriver)
	if err := srv.ListenAndServe(ctx, cfg.Rendezvous.ListenAddr); err != nil {
		log.Fatalf("rendezvous server failed: %v", err)
	}
}
