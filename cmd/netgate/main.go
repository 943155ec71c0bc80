package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"netgate/internal/config"
	"netgate/internal/confirm"
	"netgate/internal/controller"
	"netgate/internal/gateway"
	"netgate/internal/handlers"
	"netgate/internal/logging"
	"netgate/internal/permissions"
	"netgate/internal/registry"
	"netgate/internal/server"
)

var (
	configPath string
	verbose    bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "netgate",
	Short: "netgate - permissioned tool gateway for network controllers",
	Long: `netgate exposes network controller operations as a permissioned tool
catalog over stdio JSON-RPC.

Every operation carries a category and an action (read/create/update/delete).
A layered permission gate decides callability once per process; mutating
operations go through a preview-then-confirm protocol unless auto-confirm
is enabled. Long-running calls can be submitted as background jobs.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		// stdout carries the wire protocol; all diagnostics go to stderr.
		zcfg.OutputPaths = []string{"stderr"}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.Close()
		logging.CloseAudit()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the tool catalog over stdio JSON-RPC",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, gw, gate, err := bootstrap()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Permission rules hot-reload for the life of the server.
		go func() {
			if err := config.Watch(ctx, configPath, gate); err != nil && ctx.Err() == nil {
				logger.Warn("config watcher stopped", zap.Error(err))
			}
		}()

		logger.Info("serving",
			zap.String("mode", cfg.Gateway.Mode),
			zap.Bool("auto_confirm", cfg.Gateway.AutoConfirm),
			zap.Int("tools", gw.ToolIndex().Count))

		err = server.NewStdio(gw, os.Stdin, os.Stdout).Serve(ctx)

		// Drain background jobs so nothing is cut off mid-mutation.
		gw.Jobs().Wait()
		return err
	},
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the tool catalog with per-tool permission status",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, gw, _, err := bootstrap()
		if err != nil {
			return err
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		index := gw.ToolIndex()
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(index)
		}

		for _, t := range index.Tools {
			fmt.Printf("%-40s %-12s %-8s %s\n", t.Name, t.Category, t.Action, t.Status)
		}
		fmt.Printf("\n%d tools\n", index.Count)
		return nil
	},
}

var checkPermissionCmd = &cobra.Command{
	Use:   "check-permission [category] [action]",
	Short: "Explain how the gate decides a category/action pair",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		action, err := permissions.ParseAction(args[1])
		if err != nil {
			return err
		}

		verdict := permissions.NewGate(cfg.Permissions).Explain(args[0], action)
		state := "DENIED"
		if verdict.Allowed {
			state = "ALLOWED"
		}
		fmt.Printf("%s %s on %s (decided by %s)\n", state, args[1], args[0], verdict.Source)
		return nil
	},
}

// bootstrap builds the fully wired gateway from the config file.
func bootstrap() (*config.Config, *gateway.Gateway, *permissions.Gate, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	if err := logging.Initialize(cfg.Logging.StateDir, logging.Options{
		Debug:      cfg.Logging.Debug || verbose,
		Level:      cfg.Logging.Level,
		JSONFormat: cfg.Logging.Format == "json",
		Categories: categorySet(cfg.Logging.Categories),
	}); err != nil {
		return nil, nil, nil, fmt.Errorf("initialize logging: %w", err)
	}
	if err := logging.InitAudit(cfg.Logging.StateDir); err != nil {
		return nil, nil, nil, fmt.Errorf("initialize audit log: %w", err)
	}

	sim := controller.NewSimulator()
	if cfg.Controller.Seed {
		sim.Seed()
	}

	builtin := handlers.NewBuiltinSource(sim)
	gate := permissions.NewGate(cfg.Permissions)

	// Both modes populate from the same manifest: the file when present
	// (which may declare script tools), otherwise the built-in catalog.
	m, err := loadOrBuildManifest(cfg, builtin)
	if err != nil {
		return nil, nil, nil, err
	}
	source := handlers.MultiSource{
		builtin,
		handlers.NewScriptSource(cfg.Gateway.ScriptsDir, m),
	}
	reg := registry.New(gate, source)

	switch cfg.Gateway.Mode {
	case config.ModeLazy:
		if err := registry.PopulateLazy(reg, m); err != nil {
			return nil, nil, nil, err
		}
	case config.ModeEager:
		if err := registry.PopulateEager(context.Background(), reg, m, source); err != nil {
			return nil, nil, nil, err
		}
	default:
		return nil, nil, nil, fmt.Errorf("invalid gateway mode %q", cfg.Gateway.Mode)
	}

	gw := gateway.New(reg, gateway.WithAutoConfirm(cfg.Gateway.AutoConfirm))

	if err := gw.RegisterMetaTools(); err != nil {
		return nil, nil, nil, err
	}
	if confirm.AutoConfirmEnv() || cfg.Gateway.AutoConfirm {
		logger.Warn("auto-confirm enabled: mutating calls execute without preview")
	}
	return cfg, gw, gate, nil
}

// loadOrBuildManifest reads the manifest file, falling back to the
// compiled-in catalog when none exists so a bare checkout serves the
// built-in tools without running manifestgen first.
func loadOrBuildManifest(cfg *config.Config, builtin *handlers.BuiltinSource) (*registry.Manifest, error) {
	if _, err := os.Stat(cfg.Gateway.ManifestPath); err == nil {
		m, err := registry.LoadManifest(cfg.Gateway.ManifestPath)
		if err != nil {
			return nil, fmt.Errorf("load manifest: %w", err)
		}
		return m, nil
	}
	return builtin.Manifest(), nil
}

func categorySet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/netgate.yaml", "Path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	toolsCmd.Flags().Bool("json", false, "Print the catalog as JSON")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(checkPermissionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
