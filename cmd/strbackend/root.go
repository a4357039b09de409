package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"strbackend/internal/config"
	"strbackend/internal/manager"
	"strbackend/internal/memhost"
	"strbackend/internal/registry"
)

// options holds the persistent flags and the resolved service config.
type options struct {
	configPath string
	logLevel   string
	repo       string
	models     string

	cfg config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "strbackend",
		Short:         "Batched string inference backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Service config file (.yaml, .yml, .json, .toml)")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug|info|warn|error (defaults to config or info)")
	pf.StringVar(&opts.repo, "model-repository", "", "Model repository directory (overrides config)")
	pf.StringVar(&opts.models, "models", "", "Comma-separated models to load (default: all)")

	root.AddCommand(newServeCmd(opts), newRunCmd(opts), newValidateCmd())
	return root
}

// resolve loads the config file, applies flag overrides and sets up logging.
func (o *options) resolve(cmd *cobra.Command) error {
	var cfg config.Config
	if o.configPath != "" {
		c, err := config.Load(o.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
	}
	if o.repo != "" {
		cfg.ModelRepository = o.repo
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if v := splitCSV(o.models); len(v) > 0 {
		cfg.Models = v
	}
	o.cfg = cfg.WithDefaults()

	lvl, err := zerolog.ParseLevel(strings.ToLower(o.cfg.LogLevel))
	if err != nil {
		return fmt.Errorf("invalid log level %q", o.cfg.LogLevel)
	}
	o.log = zerolog.New(cmd.ErrOrStderr()).Level(lvl).With().Timestamp().Logger()
	return nil
}

// newManager scans the model repository and builds a manager over it.
func (o *options) newManager() (*manager.Manager, error) {
	if o.cfg.ModelRepository == "" {
		return nil, errors.New("model repository not set: use --model-repository or model_repository in the config file")
	}
	reg, err := registry.LoadDir(o.cfg.ModelRepository)
	if err != nil {
		return nil, fmt.Errorf("scan model repository: %w", err)
	}
	maxWait, err := o.cfg.MaxWaitDuration()
	if err != nil {
		return nil, err
	}
	o.log.Debug().Int("models", len(reg)).Str("repository", o.cfg.ModelRepository).Msg("model repository scanned")
	return manager.New(manager.ManagerConfig{
		Registry:      reg,
		Models:        o.cfg.Models,
		MaxQueueDepth: o.cfg.MaxQueueDepth,
		MaxWait:       maxWait,
		Allocator:     &memhost.Allocator{PinnedEnabled: o.cfg.PinnedInput},
		PinnedInput:   o.cfg.PinnedInput,
		Publisher:     manager.NewLogPublisher(o.log),
		Logger:        &o.log,
	}), nil
}

// splitCSV splits a comma-separated list, dropping empty items.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
