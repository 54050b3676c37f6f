package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/config"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/store"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	version = "v0.0.1-default"
	commit  = ""

	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Prints verbose logs (optional, default: false)",
	}

	configFlag = &cli.StringFlag{
		Name:    "config",
		Usage:   "Path to the YAML configuration file",
		Sources: cli.EnvVars("SSFF_CONFIG"),
	}

	dbFlag = &cli.StringFlag{
		Name:  "db",
		Usage: "Path to the SQLite report database (overrides configuration)",
	}

	formatFlag = &cli.StringFlag{
		Name:  "format",
		Usage: "Output format [json, yaml]",
		Value: formatJSON,
	}
)

func main() {
	initLogging()
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		logrus.Fatalf("fatal error: %v", err)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "ssff",
		Version: fmt.Sprintf("%s - (commit: %s)", version, commit),
		Usage:   "Evaluate startups with market, founder, product and classifier evaluators",
		Flags: []cli.Flag{
			debugFlag,
			configFlag,
			dbFlag,
			formatFlag,
		},
		Commands: []*cli.Command{
			evaluateCmd,
			reportsCmd,
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool(debugFlag.Name) {
				logrus.SetLevel(logrus.DebugLevel)
			}
			switch f := strings.ToLower(cmd.String(formatFlag.Name)); f {
			case formatJSON, formatYAML, "yml":
			default:
				return ctx, fmt.Errorf("unsupported format %q", f)
			}
			return ctx, nil
		},
	}
}

func initLogging() {
	logrus.SetOutput(os.Stderr)
	logrus.SetLevel(logrus.InfoLevel)
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp:       true,
		DisableLevelTruncation: true,
		PadLevelText:           true,
	})
}

// loadConfig resolves configuration and applies the global flags.
func loadConfig(cmd *cli.Command) (config.Config, error) {
	cfg, err := config.Load(cmd.String(configFlag.Name))
	if err != nil {
		return config.Config{}, err
	}
	if path := strings.TrimSpace(cmd.String(dbFlag.Name)); path != "" {
		cfg.Database.Path = path
	}
	if !cmd.Bool(debugFlag.Name) {
		logrus.SetLevel(cfg.Level())
	}
	return cfg, nil
}

func openStore(cfg config.Config) (*store.Database, error) {
	if dir := filepath.Dir(cfg.Database.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	return store.Open(cfg.Database.Path, true)
}

func encode(w io.Writer, format string, v any) error {
	if strings.EqualFold(format, formatYAML) || strings.EqualFold(format, "yml") {
		// Round-trip through JSON so YAML keys match the JSON field names.
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := yaml.Unmarshal(raw, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(v)
}
