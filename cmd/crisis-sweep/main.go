package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"couplecare-crisis/common/logger"
	"couplecare-crisis/internal/app"
	"couplecare-crisis/internal/config"
	"couplecare-crisis/internal/consumer"

	"go.uber.org/zap"
)

// crisis-sweep runs one batch sweep and prints its summary as JSON
func main() {
	asOfFlag := flag.String("as-of", "", "sweep date YYYY-MM-DD (default: now)")
	flag.Parse()

	var asOf time.Time
	if *asOfFlag != "" {
		parsed, err := consumer.ParseAsOf(*asOfFlag)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		asOf = parsed
	}

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "crisis-sweep")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	crisisService, err := app.NewCrisisService(cfg, log)
	if err != nil {
		log.Fatal("Failed to create crisis service", zap.Error(err))
	}
	defer crisisService.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := crisisService.RunSweep(ctx, asOf)
	if err != nil {
		log.Error("Sweep failed", zap.Error(err))
		crisisService.Stop()
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		log.Error("Failed to write summary", zap.Error(err))
	}
}
