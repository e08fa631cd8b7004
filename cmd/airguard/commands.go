package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"airguard/internal/alerts"
	"airguard/internal/api"
	"airguard/internal/bridge"
	"airguard/internal/config"
	"airguard/internal/dashboard"
	"airguard/internal/engine"
	"airguard/internal/logging"
	"airguard/internal/metrics"
	"airguard/internal/model"
	"airguard/internal/recordlog"
	"airguard/internal/runner"
	"airguard/internal/signatures"
	"airguard/internal/storage"
)

const configWatchInterval = 3 * time.Second

type rootOptions struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "airguard",
		Short:         "Air-quality inference engine for a single MOX gas sensor",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnv(opts.envFile)
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "path to the YAML or JSON config file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "optional dotenv file with dashboard secrets")

	root.AddCommand(
		newRunCmd(opts),
		newValidateCmd(opts),
		newSignaturesCmd(opts),
		newInitConfigCmd(opts),
	)
	return root
}

// loadEnv reads the dotenv file if present. Variables already set in the
// environment win.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the sampling loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts.configPath)
		},
	}
}

func run(ctx context.Context, configPath string) error {
	mgr, err := config.NewManager(config.ResolvePath(configPath))
	if err != nil {
		return fmt.Errorf("load config (try `airguard init-config`): %w", err)
	}
	cfg := mgr.Get()
	logger := logging.NewLogger(cfg.LogLevel)
	logger.Info("starting", "version", version, "config", mgr.Path())

	sigs := signatures.Load(cfg.Classifier.SignatureFile, logger)
	eng := engine.NewEngine(cfg, sigs, logger)

	br, err := bridge.New(cfg.Bridge, logger)
	if err != nil {
		return err
	}
	defer br.Close()

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	if store != nil {
		if err := store.Init(ctx); err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
		defer store.Close()
		logger.Info("storage enabled", "driver", cfg.Storage.Driver)
	}

	dash, err := dashboard.New(cfg.Dashboard, logger)
	if err != nil {
		return err
	}
	defer dash.Close()

	metricsStore := metrics.NewStore(cfg.Metrics.StoreLimit)
	collectors := metrics.NewCollectors()
	alertsStore := alerts.NewStore(cfg.Alerts.StoreLimit)

	api.Start(ctx, api.NewServer(mgr, metricsStore, collectors, alertsStore, eng, logger, version))

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go mgr.Watch(configWatchInterval, func(next *config.Config) {
		eng.UpdatePolicy(next)
		logger.Info("config reloaded",
			"alarm_high", next.Alarm.High,
			"alarm_low", next.Alarm.Low,
			"z_threshold", next.Alarm.ZThreshold,
			"match_threshold", next.Classifier.MatchThreshold,
		)
	}, func(err error) {
		logger.Warn("config reload failed", "err", err)
	}, stopWatch)

	sinks := runner.Sinks{
		Storage:    store,
		Dashboard:  dash,
		Metrics:    metricsStore,
		Collectors: collectors,
		Alerts:     alertsStore,
	}
	if cfg.RecordLog.Enabled {
		sinks.RecordLog = recordlog.NewWriter(cfg.RecordLog.Path)
	}
	return runner.New(eng, br.Source, br.Display, sinks, cfg.Loop.Interval, logger).Run(ctx)
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the config file and signature file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.ResolvePath(opts.configPath))
			if err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config ok: %s\n", opts.configPath)
			sigs, err := signatures.Parse(cfg.Classifier.SignatureFile)
			if err != nil {
				fmt.Fprintf(out, "signature file unusable, fallback will be used: %v\n", err)
				return nil
			}
			fmt.Fprintf(out, "signatures ok: %d entries in %s\n", len(sigs), cfg.Classifier.SignatureFile)
			return nil
		},
	}
}

func newSignaturesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "signatures",
		Short: "Print the signature table the classifier would use",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.ResolvePath(opts.configPath))
			if err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			logger := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, "text")
			sigs := signatures.Load(cfg.Classifier.SignatureFile, logger)
			printSignatures(cmd, sigs)
			return nil
		},
	}
}

func printSignatures(cmd *cobra.Command, sigs []model.Signature) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDELTA_TEMP\tDELTA_HUM\tVOC")
	for _, s := range sigs {
		fmt.Fprintf(tw, "%s\t%g\t%g\t%g\n", s.Name, s.Vector[0], s.Vector[1], s.Vector[2])
	}
	_ = tw.Flush()
}

func newInitConfigCmd(opts *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write a config file populated with defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ResolvePath(opts.configPath)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", opts.configPath)
			}
			if err := config.Save(path, config.DefaultConfig()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", opts.configPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
