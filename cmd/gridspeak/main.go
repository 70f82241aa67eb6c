// Command gridspeak runs a GridSpeak mesh chat node: it joins the gossip
// mesh, discovers peers on the local network via mDNS, and optionally
// exposes a REST API for external clients.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gridspeak/node/pkg/config"
	"github.com/gridspeak/node/pkg/logger"
)

var configPath string

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "gridspeak",
		Short: "GridSpeak mesh chat node",
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "path to the node's TOML config file")
	root.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(newRunCommand())
	root.AddCommand(newPrintConfigCommand())
	return root
}

func defaultConfigPath() string {
	dataHome, err := os.UserHomeDir()
	if err != nil {
		return "gridspeak.toml"
	}
	return dataHome + "/.gridspeak/gridspeak.toml"
}

func newRunCommand() *cobra.Command {
	var listen string
	var topic string
	var apiBind string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the node and join the gossip mesh",
		RunE: func(cmd *cobra.Command, args []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			logger.Init(level)

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("unable to load config %s: %w", configPath, err)
			}
			if listen != "" {
				cfg.ListenAddr = listen
			}
			if topic != "" {
				cfg.Topic = topic
			}
			if cmd.Flags().Changed("api-bind") {
				cfg.APIBindAddr = apiBind
			}

			return runNode(cfg)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "multiaddr to listen on, e.g. /ip4/0.0.0.0/tcp/7000")
	cmd.Flags().StringVar(&topic, "topic", "", "override the gossip topic declared in the config file")
	cmd.Flags().StringVar(&apiBind, "api-bind", config.DefaultBindAddr, "REST API bind address; empty disables the API")
	return cmd
}

func newPrintConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "print-config",
		Short: "Print the loaded configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("unable to load config %s: %w", configPath, err)
			}
			return printConfigTOML(cfg)
		},
	}
}
