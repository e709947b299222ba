// Package main provides websearcherd, the HTTP service in front of the
// autonomous web-browsing agent. Clients create browser-backed sessions,
// submit natural-language queries against them, and poll for results.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/entrhq/websearcher/pkg/agent/browser"
	"github.com/entrhq/websearcher/pkg/config"
	"github.com/entrhq/websearcher/pkg/llm/openai"
	"github.com/entrhq/websearcher/pkg/logging"
	"github.com/entrhq/websearcher/pkg/server"
	"github.com/entrhq/websearcher/pkg/session"
)

const version = "0.1.0"

// cliFlags holds command-line configuration. Flags override the config
// file, which overrides built-in defaults.
type cliFlags struct {
	ConfigFile  string
	Addr        string
	Model       string
	BaseURL     string
	APIKey      string
	Headless    bool
	ShowVersion bool
}

func main() {
	flags := parseFlags()

	if flags.ShowVersion {
		fmt.Printf("websearcherd v%s\n", version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down gracefully...")
		cancel()
	}()

	if err := run(ctx, flags); err != nil {
		cancel()
		fmt.Fprintf(os.Stderr, "websearcherd: %v\n", err)
		os.Exit(1)
	}
	cancel()
}

func parseFlags() *cliFlags {
	flags := &cliFlags{}

	flag.StringVar(&flags.ConfigFile, "config", "", "Path to configuration file (YAML)")
	flag.StringVar(&flags.Addr, "addr", "", "HTTP listen address (overrides config)")
	flag.StringVar(&flags.Model, "model", "", "LLM model to use (overrides config)")
	flag.StringVar(&flags.BaseURL, "base-url", os.Getenv("OPENAI_BASE_URL"), "OpenAI API base URL")
	flag.StringVar(&flags.APIKey, "api-key", os.Getenv("OPENAI_API_KEY"), "OpenAI API key")
	flag.BoolVar(&flags.Headless, "headless", true, "Run browsers headless")
	flag.BoolVar(&flags.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "websearcherd - session service for the web-browsing agent\n\n")
		fmt.Fprintf(os.Stderr, "Usage: websearcherd [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()
	return flags
}

func run(ctx context.Context, flags *cliFlags) error {
	cfg, err := config.Load(flags.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	applyFlagOverrides(cfg, flags)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, logErr := logging.NewLogger("websearcherd")
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "warning: file logging unavailable: %v\n", logErr)
	}
	defer logger.Close()
	logger.Infof("starting websearcherd v%s (run %s)", version, logger.RunID())

	providerOpts := []openai.Option{openai.WithModel(cfg.LLM.Model)}
	if cfg.LLM.BaseURL != "" {
		providerOpts = append(providerOpts, openai.WithBaseURL(cfg.LLM.BaseURL))
	}
	if cfg.LLM.APIKey != "" {
		providerOpts = append(providerOpts, openai.WithAPIKey(cfg.LLM.APIKey))
	}
	provider, err := openai.New(providerOpts...)
	if err != nil {
		return fmt.Errorf("failed to create LLM provider: %w", err)
	}

	engineLogger, _ := logging.NewLogger("browser-engine")
	defer engineLogger.Close()
	engine := browser.NewEngine(provider, engineLogger, browser.Options{
		Headless:         cfg.Browser.Headless,
		StartURL:         cfg.Browser.StartURL,
		MaxContentTokens: cfg.Browser.MaxContentTokens,
	})
	if err := engine.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize browser engine: %w", err)
	}

	sessionLogger, _ := logging.NewLogger("session-manager")
	defer sessionLogger.Close()
	store := session.NewStore()
	manager := session.NewManager(store, engine, sessionLogger)

	reaper := session.NewReaper(manager, cfg.ReapInterval(), sessionLogger)
	go reaper.Run(ctx)

	serverLogger, _ := logging.NewLogger("http")
	defer serverLogger.Close()
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.New(manager, serverLogger),
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	// Shutdown: stop accepting requests, close every live session, then
	// tear down the browser engine.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown error: %v", err)
	}

	logger.Infof("closing all sessions")
	manager.CloseAll()

	if err := engine.Shutdown(); err != nil {
		logger.Warnf("browser engine shutdown error: %v", err)
	}

	logger.Infof("shutdown complete")
	return nil
}

// applyFlagOverrides layers non-empty CLI flags over the loaded config.
func applyFlagOverrides(cfg *config.Config, flags *cliFlags) {
	if flags.Addr != "" {
		cfg.Server.Addr = flags.Addr
	}
	if flags.Model != "" {
		cfg.LLM.Model = flags.Model
	}
	if flags.BaseURL != "" {
		cfg.LLM.BaseURL = flags.BaseURL
	}
	if flags.APIKey != "" {
		cfg.LLM.APIKey = flags.APIKey
	}
	if !flags.Headless {
		cfg.Browser.Headless = false
	}
}
