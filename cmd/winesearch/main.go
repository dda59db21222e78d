// Command winesearch compares randomized and grid hyperparameter search for
// a random forest, an SVM and a logistic regression on the red wine quality
// dataset.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/YuminosukeSato/randsearch/datasets"
	"github.com/YuminosukeSato/randsearch/internal/config"
	"github.com/YuminosukeSato/randsearch/internal/experiment"
	"github.com/YuminosukeSato/randsearch/internal/report"
	"github.com/YuminosukeSato/randsearch/pkg/errors"
	"github.com/YuminosukeSato/randsearch/pkg/log"
	"github.com/YuminosukeSato/randsearch/sklearn/model_selection"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	if err := run(configPath); err != nil {
		slog.Error("winesearch failed", log.ErrAttr(err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := log.SetupLogger(strings.ToLower(cfg.Logging.Level), cfg.Logging.JSON); err != nil {
		return err
	}
	logger := log.GetLoggerWithName("winesearch")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wine, err := datasets.LoadWineQuality(ctx, cfg.Dataset.URL, cfg.Dataset.CachePath, logger)
	if err != nil {
		return err
	}
	split, err := model_selection.TrainTestSplit(wine.X, wine.Y, cfg.Split.TestSize, cfg.Split.Seed)
	if err != nil {
		return err
	}
	logger.Info("Data split",
		"split.train", len(split.TrainIndices),
		"split.test", len(split.TestIndices),
		log.RandomSeedKey, cfg.Split.Seed,
	)

	runner := experiment.NewRunner(cfg, experiment.WithLogger(logger))
	outcomes, err := runner.Run(ctx, split)
	if err != nil {
		return err
	}

	if err := report.Summary(os.Stdout, outcomes); err != nil {
		return err
	}
	if p := cfg.Output.PlotPath; p != "" {
		if err := ensureDir(p); err != nil {
			return err
		}
		if err := report.PlotTrials(outcomes, p); err != nil {
			return err
		}
		logger.Info("Trial plot written", "output.path", p)
	}
	if p := cfg.Output.MetricsPath; p != "" {
		if err := ensureDir(p); err != nil {
			return err
		}
		if err := runner.Recorder().WriteTextfile(p); err != nil {
			return err
		}
		logger.Info("Metrics written", "output.path", p)
	}

	rejected := 0
	for _, o := range outcomes {
		if o.Rejected != nil {
			rejected++
		}
	}
	if rejected > 0 {
		return errors.Newf("%d of %d searches rejected their budget", rejected, len(outcomes))
	}
	return nil
}

func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
