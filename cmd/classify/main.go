// Command classify runs the disposal classification pipeline on one local image
// and prints the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/example/smartkingston/internal/bootstrap"
	"github.com/example/smartkingston/internal/classifier"
	"github.com/example/smartkingston/internal/config"
	"github.com/example/smartkingston/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults to $CONFIG_FILE)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config file] <image-path>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	os.Exit(run(*configPath, flag.Arg(0)))
}

func run(configPath, imagePath string) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, err := bootstrap.NewPipeline(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build pipeline", zap.Error(err))
		return 1
	}

	result, err := pipeline.Classify(ctx, classifier.ImageFromFile(imagePath))
	if err != nil {
		logger.Error("classification failed", append(logging.ErrorFields(err), zap.String("image", imagePath))...)
		_ = writeJSON(map[string]string{
			"error": err.Error(),
			"kind":  string(classifier.KindOf(err)),
		})
		return 1
	}

	if err := writeJSON(result); err != nil {
		logger.Error("failed to write result", zap.Error(err))
		return 1
	}
	return 0
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
