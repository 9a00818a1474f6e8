// ABOUTME: Entry point for lcu-gateway, the local control-plane gateway
// ABOUTME: Serves the host API and reports on a running gateway

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/2389/lcu-gateway/internal/channel"
	"github.com/2389/lcu-gateway/internal/config"
	"github.com/2389/lcu-gateway/internal/credential"
	"github.com/2389/lcu-gateway/internal/events"
	"github.com/2389/lcu-gateway/internal/gateway"
	"github.com/2389/lcu-gateway/internal/lcu"
	"github.com/2389/lcu-gateway/internal/telemetry"
)

// Version is set at build time.
var version = "dev"

const banner = `
  _                                 _
 | | ___ _   _        __ _  __ _| |_ _____      ____ _ _   _
 | |/ __| | | |_____ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
 | | (__| |_| |_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
 |_|\___|\__,_|      \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
                     |___/                             |___/
`

func usage() {
	fmt.Println("Usage: lcu-gateway <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve     Start the gateway and its host API")
	fmt.Println("  init      Ask a running gateway to connect to the client")
	fmt.Println("  health    Check a running gateway's readiness")
	fmt.Println("  version   Print the version")
	fmt.Println("  help      Show this message")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --config PATH   Config file (default: $LCU_GATEWAY_CONFIG or ~/.config/lcu-gateway/config.yaml)")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, os.Args[2:])
	case "init":
		err = runRemote(ctx, os.Args[2:], http.MethodPost, "/api/init")
	case "health":
		err = runRemote(ctx, os.Args[2:], http.MethodGet, "/health/ready")
	case "version", "--version":
		fmt.Println(version)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type serveFlags struct {
	configPath string
	autoInit   bool
}

func parseServeFlags(args []string) (serveFlags, error) {
	var f serveFlags
	flagSet := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flagSet.StringVar(&f.configPath, "config", "", "path to config file (YAML or TOML)")
	flagSet.BoolVar(&f.autoInit, "init", true, "connect to the client at startup")
	if err := flagSet.Parse(args); err != nil {
		return f, err
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return f, fmt.Errorf("unexpected argument: %s", extra[0])
	}
	return f, nil
}

func loadConfig(flagValue string) (*config.Config, string, error) {
	path := config.ResolvePath(flagValue)
	// An explicitly named file must exist.
	if flagValue != "" {
		cfg, err := config.Load(path)
		return cfg, path, err
	}
	cfg, err := config.LoadOrDefault(path)
	return cfg, path, err
}

func runServe(ctx context.Context, args []string) error {
	flags, err := parseServeFlags(args)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, configPath, err := loadConfig(flags.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging, os.Stdout)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Client:    %s:%d\n", cfg.Client.Host, cfg.Client.Port)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	if cfg.Telemetry.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Telemetry: %s\n", cfg.Telemetry.Exporter)
	}
	fmt.Println()

	provider, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Exporter:    cfg.Telemetry.Exporter,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		SampleRate:  cfg.Telemetry.SampleRate,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	gw, err := gateway.New(gatewayOptions(cfg, provider), logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	logger.Info("starting lcu-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return gw.Run(ctx)
	})
	if flags.autoInit {
		g.Go(func() error {
			// The host API stays up so POST /api/init can retry.
			if err := gw.Initialize(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("initialize failed", "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func gatewayOptions(cfg *config.Config, provider *telemetry.Provider) gateway.Options {
	logURIs := make([]events.Selector, 0, len(cfg.Events.LogURIs))
	for _, uri := range cfg.Events.LogURIs {
		logURIs = append(logURIs, events.Selector(uri))
	}
	return gateway.Options{
		Source: credential.NewStatic(cfg.Client.Host, cfg.Client.Port, cfg.Client.AuthToken),
		Client: lcu.Options{
			Timeout:            cfg.Client.RequestTimeout,
			InsecureSkipVerify: cfg.Client.InsecureSkipVerify,
		},
		Channel: channel.Config{
			ReconnectInitial:   cfg.Events.ReconnectInitial,
			ReconnectMax:       cfg.Events.ReconnectMax,
			InsecureSkipVerify: cfg.Client.InsecureSkipVerify,
		},
		LogURIs:   logURIs,
		Telemetry: provider,
		HTTPAddr:  cfg.Server.HTTPAddr,
	}
}

// runRemote calls a running gateway's host API and prints the response.
func runRemote(ctx context.Context, args []string, method, path string) error {
	flagSet := pflag.NewFlagSet(path, pflag.ContinueOnError)
	configPath := flagSet.String("config", "", "path to config file (YAML or TOML)")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s%s", cfg.Server.HTTPAddr, path)
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("contacting gateway: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	fmt.Println(string(body))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	return nil
}
