// Command domresolve is the semantic element-resolution daemon.
//
// Usage:
//
//	domresolve -config domresolve.yaml -url https://example.com        # serve MCP on stdio
//	domresolve -config domresolve.yaml -url <url> -listen :8097       # serve HTTP diagnostics too
//	domresolve -selectors selectors.yaml -html page.html -intent x    # one-shot against static HTML
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/domresolve"
	"github.com/hazyhaar/domresolve/capture"
	"github.com/hazyhaar/domresolve/driver"
	"github.com/hazyhaar/domresolve/htmldriver"
	"github.com/hazyhaar/domresolve/rodriver"
)

func main() {
	configPath := flag.String("config", "", "path to domresolve.yaml config file")
	selectorsPath := flag.String("selectors", "", "path to selector definitions YAML (overrides config)")
	pageURL := flag.String("url", "", "page to drive via Chrome")
	htmlPath := flag.String("html", "", "static HTML file instead of a live browser")
	intent := flag.String("intent", "", "resolve one intent, print the result, exit")
	scopeID := flag.String("scope", "", "scope to enter before resolving")
	listen := flag.String("listen", "", "HTTP diagnostics listen address (empty = disabled)")
	remoteChrome := flag.String("chrome", "", "WebSocket URL of an external Chrome (empty = launch local)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, options{
		configPath:    *configPath,
		selectorsPath: *selectorsPath,
		pageURL:       *pageURL,
		htmlPath:      *htmlPath,
		intent:        *intent,
		scopeID:       *scopeID,
		listen:        *listen,
		remoteChrome:  *remoteChrome,
	}); err != nil {
		logger.Error("domresolve: fatal", "error", err)
		os.Exit(1)
	}
}

type options struct {
	configPath    string
	selectorsPath string
	pageURL       string
	htmlPath      string
	intent        string
	scopeID       string
	listen        string
	remoteChrome  string
}

func run(ctx context.Context, logger *slog.Logger, opts options) error {
	if opts.pageURL == "" && opts.htmlPath == "" {
		fmt.Fprintln(os.Stderr, "usage: domresolve -config <file> -url <url> | -html <file> [-intent <intent>]")
		os.Exit(1)
	}

	cfg := &domresolve.Config{}
	if opts.configPath != "" {
		loaded, err := domresolve.LoadConfigFile(opts.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if opts.selectorsPath != "" {
		cfg.SelectorsPath = opts.selectorsPath
	}

	drv, cleanup, err := openDriver(ctx, logger, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	r, err := domresolve.New(cfg, drv, logger, capture.NewStdout(nil))
	if err != nil {
		return err
	}
	defer r.Close()

	if opts.scopeID != "" {
		r.EnterScope(opts.scopeID)
	}

	// One-shot mode.
	if opts.intent != "" {
		res, err := r.Resolve(ctx, opts.intent)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", opts.intent, err)
		}
		printResult(ctx, res)
		return nil
	}

	// Daemon mode: adaptation loop plus MCP on stdio, HTTP optional.
	r.Start(ctx)

	if opts.listen != "" {
		router := chi.NewRouter()
		r.RegisterHTTP(router)
		go func() {
			logger.Info("domresolve: http listening", "addr", opts.listen)
			if err := http.ListenAndServe(opts.listen, router); err != nil && ctx.Err() == nil {
				logger.Error("domresolve: http server", "error", err)
			}
		}()
	}

	mcpSrv := mcp.NewServer(&mcp.Implementation{
		Name:    "domresolve",
		Version: "1.0.0",
	}, nil)
	r.RegisterMCP(mcpSrv)

	logger.Info("domresolve: serving MCP on stdio")
	if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp serve: %w", err)
	}
	return nil
}

func openDriver(ctx context.Context, logger *slog.Logger, opts options) (driver.Driver, func(), error) {
	if opts.htmlPath != "" {
		data, err := os.ReadFile(opts.htmlPath)
		if err != nil {
			return nil, nil, fmt.Errorf("read html: %w", err)
		}
		d := htmldriver.New()
		if err := d.SetHTML(data); err != nil {
			return nil, nil, fmt.Errorf("parse html: %w", err)
		}
		return d, func() {}, nil
	}

	d, err := rodriver.Open(rodriver.Config{
		RemoteURL: opts.remoteChrome,
		Stealth:   true,
		Logger:    logger,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := d.Navigate(ctx, opts.pageURL); err != nil {
		d.Close()
		return nil, nil, err
	}
	return d, func() { d.Close() }, nil
}

func printResult(ctx context.Context, res *domresolve.ResolutionResult) {
	fmt.Printf("intent=%s decision=%s confidence=%.2f strategy=%s attempts=%d\n",
		res.Intent, res.Decision, res.Confidence, res.StrategyUsed, len(res.Attempts))
	if res.Element != nil {
		if text, err := res.Element.Text(ctx); err == nil {
			fmt.Printf("text=%s\n", text)
		}
	}
	for _, a := range res.Attempts {
		status := "no match"
		switch {
		case a.Error != "":
			status = "error: " + a.Error
		case a.Matched && a.Validated:
			status = fmt.Sprintf("matched confidence=%.2f", a.Confidence)
		case a.Matched:
			status = "matched, validation failed"
		}
		fmt.Printf("  %s (%s): %s\n", a.Strategy, a.Kind, status)
	}
}
