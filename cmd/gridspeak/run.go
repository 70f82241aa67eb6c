package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/gridspeak/node/internal/api"
	"github.com/gridspeak/node/internal/mesh"
	"github.com/gridspeak/node/pkg/bus"
	"github.com/gridspeak/node/pkg/channels"
	"github.com/gridspeak/node/pkg/config"
	"github.com/gridspeak/node/pkg/identity"
	"github.com/gridspeak/node/pkg/logger"
	"github.com/gridspeak/node/pkg/telemetry"
	"github.com/gridspeak/node/pkg/voicering"
)

const shutdownTimeout = 5 * time.Second

func runNode(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	directory, err := channels.Open(cfg.DataDir, cfg.Channels, cfg)
	if err != nil {
		return fmt.Errorf("unable to open channel directory: %w", err)
	}

	ident, err := identity.LoadOrCreate(filepath.Join(cfg.DataDir, "identity.bin"))
	if err != nil {
		return fmt.Errorf("unable to load node identity: %w", err)
	}

	tel := telemetry.New()
	voice := voicering.New(voicering.DefaultCapacity)
	bridge := bus.New(bus.DefaultCommandQueueSize, bus.DefaultVoiceQueueSize)

	engine, err := mesh.New(ctx, ident.Priv, mesh.Config{
		ListenAddr:     cfg.ListenAddr,
		TopicName:      cfg.Topic,
		BootstrapNodes: cfg.BootstrapNodes,
		Nickname:       cfg.Nickname,
	}, directory, tel, voice, bridge)
	if err != nil {
		return fmt.Errorf("unable to build mesh engine: %w", err)
	}
	defer engine.Close()

	var apiServer *api.Server
	apiBind := strings.TrimSpace(cfg.APIBindAddr)
	if apiBind != "" {
		apiServer = api.New(apiBind, directory, bridge, tel, voice, engine.PeerID().String(), cfg.Nickname)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.WarnCF("api", "api server stopped", map[string]any{"error": err.Error()})
			}
		}()
	}

	runErr := engine.Run(ctx)

	if apiServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		_ = apiServer.Shutdown(shutdownCtx)
	}
	bridge.Close()

	return runErr
}

func printConfigTOML(cfg *config.Config) error {
	encoder := toml.NewEncoder(os.Stdout)
	return encoder.Encode(cfg)
}
