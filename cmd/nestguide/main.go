// cmd/nestguide/main.go
//
// Entry point for the nestguide CLI. Every subcommand shares the same start-up:
// load .env, read nestguide.yaml, apply flag overrides, build the logger.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kingrea/nestguide/internal/config"
	"github.com/kingrea/nestguide/internal/logging"
	"github.com/kingrea/nestguide/internal/triage"
)

// rootState carries the state resolved by the root command's pre-run hook.
type rootState struct {
	configPath string
	catalog    string
	region     string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	rt := &rootState{logger: zap.NewNop()}
	root := &cobra.Command{
		Use:   "nestguide",
		Short: "Symptom triage for worried parents",
		Long: `nestguide walks a caregiver through a short yes/no interview and ends with
a clear recommendation: call an ambulance, call the advice line, see a doctor
tomorrow, or care for the child at home.

Run "nestguide interview" for the terminal interview or "nestguide serve" for
the HTTP session API.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if rt.logger != nil {
				_ = rt.logger.Sync()
			}
		},
	}
	flags := root.PersistentFlags()
	flags.StringVarP(&rt.configPath, "config", "c", "", "Config file (default: $NESTGUIDE_CONFIG or ./nestguide.yaml)")
	flags.StringVar(&rt.catalog, "catalog", "", "Triage catalog file (default: built-in catalog)")
	flags.StringVar(&rt.region, "region", "", "Region id for hotline numbers and local guidance")
	flags.BoolVarP(&rt.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newInterviewCmd(rt),
		newValidateCmd(rt),
		newDescribeCmd(rt),
		newServeCmd(rt),
		newStatsCmd(rt),
		newInitCmd(rt),
	)
	return root
}

func (rt *rootState) setup() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load(config.ResolvePath(rt.configPath))
	if err != nil {
		return err
	}
	if value := strings.TrimSpace(rt.catalog); value != "" {
		cfg.Catalog = value
	}
	if value := strings.TrimSpace(rt.region); value != "" {
		cfg.Region = value
	}
	if rt.verbose {
		cfg.Log.Level = "debug"
	}
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return err
	}
	rt.cfg = cfg
	rt.logger = logger
	return nil
}

func (rt *rootState) loadCatalog() (*triage.Catalog, error) {
	catalog, err := triage.Load(rt.cfg.Catalog)
	if err != nil {
		return nil, err
	}
	rt.logger.Debug("catalog loaded",
		zap.String("path", rt.cfg.Catalog),
		zap.Int("version", catalog.Version()),
	)
	return catalog, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
