package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/saaga0h/teferi-timeline/e2e/internal/executor"
	"github.com/saaga0h/teferi-timeline/e2e/internal/reporter"
	"github.com/saaga0h/teferi-timeline/e2e/internal/scenario"
	"github.com/saaga0h/teferi-timeline/pkg/config"
	"github.com/saaga0h/teferi-timeline/pkg/mqtt"
)

func main() {
	scenarioPath := pflag.String("scenario", "", "Path to YAML scenario file (required)")
	apiURL := pflag.String("api-url", "http://localhost:8080", "Timeline service base URL")
	outputDir := pflag.String("output-dir", "./test-output", "Output directory for test artifacts")
	timeout := pflag.Duration("timeout", 30*time.Second, "How long to wait for the timeline update")
	verbose := pflag.Bool("verbose", false, "Enable verbose logging")

	// Broker settings come from the same TEFERI_* variables the service reads
	cfg := config.NewConfig()
	cfg.ServiceName = "teferi-e2e"
	cfg.MQTTClientID = "teferi-test-player"
	cfg.LoadFromEnv()
	cfg.LoadFromFlags()

	if *scenarioPath == "" {
		fmt.Fprintf(os.Stderr, "Error: --scenario is required\n")
		pflag.Usage()
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	scen, err := scenario.LoadScenario(*scenarioPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load scenario: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	mqttClient := mqtt.NewClient(cfg, logger)
	if err := mqttClient.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to MQTT: %v\n", err)
		os.Exit(1)
	}
	defer mqttClient.Disconnect()

	runner := executor.NewRunner(mqttClient, strings.TrimSuffix(*apiURL, "/"), *timeout, logger)
	result, err := runner.Run(ctx, scen)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Test execution failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Print(reporter.FormatResult(result))

	scenarioName := strings.TrimSuffix(filepath.Base(*scenarioPath), ".yaml")
	summaryPath := filepath.Join(*outputDir, "summaries", scenarioName+".json")
	if err := reporter.SaveSummary(result, summaryPath); err != nil {
		logger.Warn("Failed to save summary", "error", err)
	} else {
		logger.Info("Summary saved", "path", summaryPath)
	}

	if !result.Passed {
		os.Exit(1)
	}
}
