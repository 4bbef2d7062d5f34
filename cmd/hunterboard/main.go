package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rewired-gh/hunterboard/internal/config"
	"github.com/rewired-gh/hunterboard/internal/dashboard"
	"github.com/rewired-gh/hunterboard/internal/logger"
	"github.com/rewired-gh/hunterboard/internal/market"
	"github.com/rewired-gh/hunterboard/internal/sheets"
	"github.com/rewired-gh/hunterboard/internal/sparkline"
	"github.com/rewired-gh/hunterboard/internal/storage"
	"github.com/rewired-gh/hunterboard/internal/telegram"
	"github.com/rewired-gh/hunterboard/internal/transform"
	"github.com/rewired-gh/hunterboard/internal/web"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file (empty for environment only)")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %q", *configPath)

	store, err := storage.New(cfg.Storage.MaxLoadEvents, cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loader := sheets.NewLoader(newSheetReader(ctx, cfg.Sheets))

	marketClient := market.NewClient(
		cfg.Market.BaseURL,
		cfg.Market.APIKey,
		cfg.Market.Timeout,
		market.ClientConfig{
			Suffix:              cfg.Market.Suffix,
			Window:              cfg.Market.Window,
			ClosePath:           cfg.Market.ClosePath,
			DatePath:            cfg.Market.DatePath,
			MaxRetries:          cfg.Market.MaxRetries,
			RetryDelayBase:      cfg.Market.RetryDelayBase,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     90 * time.Second,
		},
	)
	if cfg.Market.APIKey == "" {
		logger.Warn("market.api_key is empty; charts will likely be unavailable")
	}

	dashConfig := dashboard.Config{
		Transform: transform.Options{
			Columns: transform.Columns{
				DetectedOn: cfg.Columns.DetectedOn,
				Name:       cfg.Columns.Name,
				Code:       cfg.Columns.Code,
				Return:     cfg.Columns.Return,
				Price:      cfg.Columns.Price,
				Note:       cfg.Columns.Note,
			},
			UnresolvedPrice: cfg.Display.UnresolvedPrice,
			CodeWidth:       cfg.Display.CodeWidth,
		},
		Sparkline: sparkline.Options{Width: cfg.Chart.Width, Height: cfg.Chart.Height},
		SheetTTL:  cfg.Cache.SheetTTL,
		ChartTTL:  cfg.Cache.ChartTTL,
	}
	opts := []dashboard.Option{dashboard.WithJournal(store)}

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase, cfg.Server.PublicURL)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		opts = append(opts, dashboard.WithNotifier(telegramClient))
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	dash, err := dashboard.New(loader, marketClient, dashConfig, opts...)
	if err != nil {
		logger.Fatal("Failed to initialize dashboard: %v", err)
	}
	defer dash.Close()

	srv, err := web.NewServer(dash, web.Config{
		Title:    cfg.Display.Title,
		Intro:    cfg.Display.Intro,
		Currency: cfg.Display.Currency,
	}, web.WithLoadHistory(store))
	if err != nil {
		logger.Fatal("Failed to initialize web server: %v", err)
	}
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer done()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP shutdown: %v", err)
		}
	}()

	if telegramClient != nil {
		telegramClient.ListenForCommands(ctx, store.LatestDigest)
		go watch(ctx, dash, cfg.Telegram.PollInterval)
	}

	logger.Info("Serving dashboard on %s (sheet ttl: %v, chart ttl: %v)", cfg.Server.Addr, cfg.Cache.SheetTTL, cfg.Cache.ChartTTL)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("HTTP server failed: %v", err)
	}
	logger.Info("Service stopped")
}

// newSheetReader builds the Google reader, or a reader that reports the
// configuration problem on every load so the page can show it.
func newSheetReader(ctx context.Context, cfg config.SheetsConfig) sheets.ValueReader {
	creds, err := cfg.Credentials()
	if err != nil {
		logger.Error("Sheets credentials: %v", err)
		return sheets.Unconfigured(err)
	}
	reader, err := sheets.NewGoogleReader(ctx, creds, cfg.SpreadsheetID, cfg.SpreadsheetName)
	if err != nil {
		logger.Error("Sheets reader: %v", err)
		return sheets.Unconfigured(err)
	}
	return reader
}

// watch builds the page on a ticker so digests and error notices go out
// without waiting for a visitor. Builds go through the caches like any request.
func watch(ctx context.Context, dash *dashboard.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Debug("Running initial dashboard build")
	dash.Build(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			page := dash.Build(ctx)
			logger.Debug("Scheduled build: %s, %d cards in %v", page.Kind, len(page.Cards), time.Since(start))
		}
	}
}
