package main

import (
	"os"

	"github.com/DRSN-tech/recommender/internal/app"
	config "github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/spf13/cobra"
)

// rootCmd без подкоманды запускает сервис
var rootCmd = &cobra.Command{
	Use:   "recommender",
	Short: "Similar product recommendation service",
	Long: `Recommender serves similar-variant recommendations over HTTP and gRPC
from an in-memory vector index built from Qdrant embeddings and the Postgres catalog.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP and gRPC servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, buildIndexCmd, benchmarkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe() error {
	application, log, err := newApp()
	if err != nil {
		return err
	}

	if err := application.Run(); err != nil {
		log.Errorf(err, "application stopped with error")
		return err
	}
	return nil
}

// newApp читает окружение и собирает приложение. Ошибки уже залогированы.
func newApp() (*app.App, logger.Logger, error) {
	log := newLogger()

	cfg, err := config.Load(log)
	if err != nil {
		log.Errorf(err, "failed to load config")
		return nil, log, err
	}

	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Errorf(err, "failed to initialize app")
		return nil, log, err
	}

	return application, log, nil
}

func newLogger() logger.Logger {
	logCfg, err := config.LoadLogCfg()
	if err != nil {
		log := logger.NewSlogLogger()
		log.Warnf("invalid log settings, using defaults: %v", err)
		return log
	}

	opts := []logger.Option{logger.WithLevel(logCfg.Level), logger.WithFormat(logCfg.Format)}
	if logCfg.File != "" {
		opts = append(opts, logger.WithFile(logCfg.File, logCfg.MaxSizeMB, logCfg.MaxBackups, logCfg.MaxAgeDays))
	}
	return logger.NewSlogLogger(opts...)
}
