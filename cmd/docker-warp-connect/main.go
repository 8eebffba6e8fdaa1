package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	dockeradapter "github.com/genzj/docker-warp-connect/internal/adapter/docker"
	netlinkadapter "github.com/genzj/docker-warp-connect/internal/adapter/netlink"
	"github.com/genzj/docker-warp-connect/internal/config"
	"github.com/genzj/docker-warp-connect/internal/logging"
	"github.com/genzj/docker-warp-connect/internal/telemetry"
	"github.com/genzj/docker-warp-connect/internal/warp"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string
	var logLevel string
	var dockerSocket string

	cmd := &cobra.Command{
		Use:     "docker-warp-connect",
		Short:   "Route target containers through a warp egress gateway",
		Version: Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, logLevel, dockerSocket)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to TOML config file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log_level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&dockerSocket, "docker-socket", "", "Override docker_socket")

	cmd.AddCommand(dumpConfigCmd(&configPath, &logLevel, &dockerSocket))
	return cmd
}

// loadConfig layers defaults, the TOML file, WARP_-prefixed environment
// variables, and finally CLI flags (flags win), then validates.
func loadConfig(configPath, logLevelFlag, dockerSocketFlag string) (config.Config, error) {
	cfg, err := config.LoadFile(configPath, config.Defaults())
	if err != nil {
		return config.Config{}, err
	}
	cfg, err = config.ApplyEnv(cfg)
	if err != nil {
		return config.Config{}, err
	}
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}
	if dockerSocketFlag != "" {
		cfg.DockerSocket = dockerSocketFlag
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func dumpConfigCmd(configPath, logLevelFlag, dockerSocketFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "dump-config",
		Short: "Print the fully resolved configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath, *logLevelFlag, *dockerSocketFlag)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func run(ctx context.Context, cfg config.Config) error {
	if err := logging.Configure(cfg.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}

	tel, err := telemetry.New()
	if err != nil {
		return fmt.Errorf("configure telemetry: %w", err)
	}
	defer func() { _ = tel.Shutdown(context.Background()) }()

	runtime, err := dockeradapter.NewRuntime()
	if err != nil {
		return fmt.Errorf("connect docker: %w", err)
	}
	defer runtime.Close()

	if err := dockeradapter.WaitReady(ctx, runtime.Client()); err != nil {
		return fmt.Errorf("wait for docker daemon: %w", err)
	}

	classifier, err := warp.NewClassifier(cfg.WarpContainerPattern, cfg.TargetContainerLabel, cfg.NetworkPreferenceLabel)
	if err != nil {
		return fmt.Errorf("compile warp_container_pattern: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	onInstalled, onRemoved, onRetry := tel.Hooks(ctx)
	loop := warp.NewLoop(warp.LoopConfig{
		Runtime:           runtime,
		Classifier:        classifier,
		Resolver:          warp.NewResolver(cfg.NetworkPreferenceLabel),
		Rules:             warp.NewRuleEngine(),
		Namespace:         netlinkadapter.NewProgrammer(),
		Ledger:            warp.NewLedger(),
		RoutingRules:      cfg.RoutingRules,
		RetryDelay:        time.Duration(cfg.RetryDelaySeconds) * time.Second,
		RetryMaxAttempts:  cfg.RetryMaxAttempts,
		OnRoutesInstalled: onInstalled,
		OnRoutesRemoved:   onRemoved,
		OnSubscribeRetry:  onRetry,
	})

	slog.Info("docker-warp-connect starting", "warp_pattern", cfg.WarpContainerPattern)
	err = loop.Run(ctx)
	if err != nil && ctx.Err() != nil {
		slog.Info("docker-warp-connect stopped")
		return nil
	}
	return err
}
