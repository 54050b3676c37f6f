package main

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/api"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/config"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/store"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		logrus.Fatalf("load configuration: %v", err)
	}
	logrus.SetLevel(cfg.Level())

	if dir := filepath.Dir(cfg.Database.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logrus.Fatalf("create data directory: %v", err)
		}
	}
	db, err := store.Open(cfg.Database.Path, cfg.Database.Silent)
	if err != nil {
		logrus.Fatalf("open database: %v", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("close database")
		}
	}()

	notifier := api.NewEvaluationNotifier()
	orch, err := cfg.BuildOrchestrator(db, notifier)
	if err != nil {
		logrus.Fatalf("configure evaluation pipeline: %v", err)
	}

	server, err := api.NewServer(api.Config{
		DB:             db,
		Runner:         orch,
		Notifier:       notifier,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Settings:       cfg.Summary(),
	})
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}

	router, err := server.Router()
	if err != nil {
		logrus.Fatalf("configure router: %v", err)
	}

	port := cfg.Server.Port
	if port == "" {
		port = "2000"
	}

	logrus.WithField("evaluators", orch.Kinds()).Infof("starting ssff backend on :%s", port)
	if err := router.Run(":" + port); err != nil {
		logrus.Fatalf("server exited: %v", err)
	}
}
