// Command shuttled runs the upload daemon directly, without the CLI
// launcher. It is intended for service managers such as systemd.
package main

import (
	"context"
	"log"

	"shuttle/internal/config"
	"shuttle/internal/daemonrun"
)

func main() {
	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{}); err != nil {
		log.Fatalf("run daemon: %v", err)
	}
}
