package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salestore/config"
	"salestore/core/events"
	"salestore/native/sale"
	"salestore/observability/logging"
	"salestore/rpc"
	"salestore/state"
	"salestore/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "./config.toml", "path to the configuration file")
	flag.Parse()

	env := os.Getenv("SALED_ENV")
	if env == "" {
		env = "development"
	}
	logger := logging.Setup("saled", env)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	treasury, err := cfg.Treasury()
	if err != nil {
		logger.Error("parse treasury address", "error", err)
		os.Exit(1)
	}
	noPromoter, err := cfg.NoPromoter()
	if err != nil {
		logger.Error("parse no-promoter address", "error", err)
		os.Exit(1)
	}
	operators, err := cfg.Operators()
	if err != nil {
		logger.Error("parse admin addresses", "error", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("open database", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	source := sale.NewHTTPOracle(&http.Client{Timeout: 5 * time.Second}, cfg.PriceFeedEndpoint)
	oracle := sale.NewOracleAdapter(source, cfg.OracleStaleness())

	server := rpc.NewServer(rpc.Options{
		Log:     logger,
		Manager: state.NewManager(db),
		Params: sale.Params{
			Treasury:         treasury,
			PriceFeedID:      cfg.PriceFeedID,
			NoPromoter:       noPromoter,
			DefaultMaxCap:    cfg.MaxCap,
			DefaultMinCap:    cfg.MinCap,
			DefaultFirstFee:  cfg.FirstFeePPB,
			DefaultSecondFee: cfg.SecondFeePPB,
		},
		Gate:             sale.NewAdminGate(operators),
		Oracle:           oracle,
		Recorder:         events.NewRecorder(256),
		DepositPerMinute: cfg.DepositRatePerMinute,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("sale daemon listening", "address", cfg.ListenAddress)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen", "error", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
