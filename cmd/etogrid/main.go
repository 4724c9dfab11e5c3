package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/chrissnell/etogrid/internal/app"
	"github.com/chrissnell/etogrid/internal/constants"
	"github.com/chrissnell/etogrid/internal/log"
	"github.com/chrissnell/etogrid/internal/meteo"
	"github.com/chrissnell/etogrid/pkg/config"
)

func main() {
	cfgFile := flag.String("config", "etogrid.yaml", "Path to the YAML configuration file")
	date := flag.String("date", "", "Day to compute (YYYY-MM-DD, UTC); overrides run.date. Defaults to yesterday")
	source := flag.String("source", "", "Product ID, e.g. "+sourceExamples()+"; overrides run.source")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("etogrid %s\n", constants.Version)
		os.Exit(0)
	}

	// Set up logging
	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfgData, err := loadConfig(*cfgFile)
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	if *date != "" {
		cfgData.Run.Date = *date
	}
	if *source != "" {
		cfgData.Run.Source = *source
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := app.New(cfgData, log.Named("app"))
	report, err := application.Run(ctx)
	if err != nil {
		log.Errorf("ETo run failed: %v", err)
		log.Sync()
		os.Exit(1)
	}
	log.Infow("ETo run complete", "output", report.Output, "run_id", report.Run.ID.String())
}

func loadConfig(cfgFile string) (*config.ConfigData, error) {
	filename, _ := filepath.Abs(cfgFile)

	var provider config.ConfigProvider = config.NewYAMLProvider(filename)
	defer provider.Close()

	cfgData, err := provider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error reading config file. Did you pass the -config flag? Run with -h for help: %w", err)
	}
	return cfgData, nil
}

func sourceExamples() string {
	var names []string
	for _, s := range meteo.Sources() {
		names = append(names, s.Match)
	}
	return strings.Join(names, ", ")
}
