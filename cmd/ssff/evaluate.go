package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/api"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/config"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/domain"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/orchestrator"
)

var (
	profileFlag = &cli.StringFlag{
		Name:     "profile",
		Usage:    "Startup profile file (.yaml, .yml or .json)",
		Required: true,
	}

	saveFlag = &cli.BoolFlag{
		Name:  "save",
		Usage: "Persist the report to the database (optional, default: false)",
	}

	evaluateCmd = &cli.Command{
		Name:   "evaluate",
		Usage:  "Run one evaluation round for a startup profile",
		Flags:  []cli.Flag{profileFlag, saveFlag},
		Action: cmdEvaluate,
	}
)

func cmdEvaluate(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	profile, err := readProfile(cmd.String(profileFlag.Name))
	if err != nil {
		return err
	}

	var lookup config.ComparableLookup
	db, err := openStore(cfg)
	if err != nil {
		if cmd.Bool(saveFlag.Name) {
			return fmt.Errorf("open database: %w", err)
		}
		logrus.WithError(err).Warn("report database unavailable; running without comparables")
	} else {
		defer func() {
			if cerr := db.Close(); cerr != nil {
				logrus.WithError(cerr).Warn("close database")
			}
		}()
		lookup = db
	}

	progress := orchestrator.ObserverFunc(func(e orchestrator.Event) {
		if e.Assessment == nil {
			return
		}
		logrus.WithFields(logrus.Fields{
			"kind":      e.Assessment.Kind,
			"status":    e.Assessment.Status,
			"completed": fmt.Sprintf("%d/%d", e.Completed, e.Total),
		}).Info("assessment finished")
	})
	orch, err := cfg.BuildOrchestrator(lookup, progress)
	if err != nil {
		return err
	}

	report, runErr := orch.Run(ctx, profile)
	if report == nil {
		return runErr
	}
	if cmd.Bool(saveFlag.Name) && db != nil {
		if err := db.SaveReport(report); err != nil {
			return fmt.Errorf("save report: %w", err)
		}
		logrus.WithField("report", report.ID).Info("report saved")
	}
	if err := encode(os.Stdout, cmd.String(formatFlag.Name), api.FromReport(report)); err != nil {
		return err
	}
	return runErr
}

func readProfile(path string) (domain.StartupProfile, error) {
	var profile domain.StartupProfile
	raw, err := os.ReadFile(path)
	if err != nil {
		return profile, fmt.Errorf("read profile: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &profile)
	case ".json":
		err = json.Unmarshal(raw, &profile)
	default:
		return profile, errors.New("profile must be a .yaml, .yml or .json file")
	}
	if err != nil {
		return profile, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return profile, nil
}
