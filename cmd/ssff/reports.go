package main

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/api"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/store"
)

const reportsLimitDefault = 20

var (
	sectorFlag = &cli.StringFlag{
		Name:  "sector",
		Usage: "Only list reports of this sector",
	}

	recommendationFlag = &cli.StringFlag{
		Name:  "recommendation",
		Usage: "Only list reports with this recommendation [invest, watch, pass, undetermined]",
	}

	limitFlag = &cli.IntFlag{
		Name:  "limit",
		Usage: "Limits number of result returned",
		Value: reportsLimitDefault,
	}

	reportsCmd = &cli.Command{
		Name:  "reports",
		Usage: "Inspect stored evaluation reports",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List recent reports",
				Flags:  []cli.Flag{sectorFlag, recommendationFlag, limitFlag},
				Action: cmdListReports,
			},
			{
				Name:      "show",
				Usage:     "Show one report",
				ArgsUsage: "<id>",
				Action:    cmdShowReport,
			},
			{
				Name:   "stats",
				Usage:  "Summarize stored reports",
				Flags:  []cli.Flag{sectorFlag},
				Action: cmdReportStats,
			},
		},
	}
)

func withStore(cmd *cli.Command, fn func(db *store.Database) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("close database")
		}
	}()
	return fn(db)
}

func cmdListReports(_ context.Context, cmd *cli.Command) error {
	return withStore(cmd, func(db *store.Database) error {
		reports, total, err := db.ListReports(store.ReportQuery{
			Sector:         cmd.String(sectorFlag.Name),
			Recommendation: cmd.String(recommendationFlag.Name),
			Limit:          int(cmd.Int(limitFlag.Name)),
		})
		if err != nil {
			return err
		}
		items := make([]api.ReportSummaryDTO, 0, len(reports))
		for _, report := range reports {
			items = append(items, api.SummaryFromReport(report))
		}
		return encode(os.Stdout, cmd.String(formatFlag.Name), api.ReportsResponse{Items: items, Total: total})
	})
}

func cmdShowReport(_ context.Context, cmd *cli.Command) error {
	id := strings.TrimSpace(cmd.Args().First())
	if id == "" {
		return errors.New("report id is required")
	}
	return withStore(cmd, func(db *store.Database) error {
		report, err := db.GetReport(id)
		if err != nil {
			return err
		}
		return encode(os.Stdout, cmd.String(formatFlag.Name), api.FromReport(report))
	})
}

func cmdReportStats(_ context.Context, cmd *cli.Command) error {
	return withStore(cmd, func(db *store.Database) error {
		stats, err := db.Stats(store.ReportQuery{Sector: cmd.String(sectorFlag.Name)})
		if err != nil {
			return err
		}
		return encode(os.Stdout, cmd.String(formatFlag.Name), stats)
	})
}
