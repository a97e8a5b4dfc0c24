// gramd entry point
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/batalabs/gramd/internal/claude"
	"github.com/batalabs/gramd/internal/config"
	"github.com/batalabs/gramd/internal/sentryutil"
	"github.com/batalabs/gramd/internal/service"
	"github.com/batalabs/gramd/internal/store"
	"github.com/batalabs/gramd/internal/telegram"
)

var version = "dev"

func init() {
	if version != "dev" {
		return
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
}

func main() {
	versionFlag := flag.Bool("version", false, "Print version and exit")
	envFlag := flag.String("env", "", "Path to .env file (default: ./.env)")
	serviceCmd := flag.String("service", "", "Service management: install|uninstall|status|start|stop")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("gramd %s\n", version)
		return
	}

	// Service commands need no token or network.
	if *serviceCmd != "" {
		if err := service.HandleCommand(*serviceCmd); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*envFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger := config.NewLogger()
	defer logger.Close()

	sentryutil.Init(cfg.SentryDSN, cfg.SentryEnvironment)
	defer sentryutil.Flush()

	st, err := store.OpenStore()
	if err != nil {
		// The bot still works without the message log.
		logger.Printf("store: %v", err)
		st = nil
	} else {
		defer st.Close()
	}

	var runner *claude.Runner
	if cfg.AIEnabled {
		runner, err = claude.NewRunner(cfg.ClaudeBin, cfg.AIModel, cfg.SystemPrompt,
			cfg.AllowedTools, cfg.WorkDir, cfg.AITimeout)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if cfg.GeminiAPIKey != "" {
			runner.ExtraEnv = append(runner.ExtraEnv, "GEMINI_API_KEY="+cfg.GeminiAPIKey)
		}
	}

	adapter, err := telegram.NewAdapter(cfg, logger, runner, st)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := service.WritePidfile(); err != nil {
		logger.Printf("pidfile: %v", err)
	}
	defer func() {
		if err := service.RemovePidfile(); err != nil {
			logger.Printf("pidfile: %v", err)
		}
	}()

	logger.Printf("gramd %s starting as @%s", version, adapter.BotName())
	sentryutil.CaptureMessage("gramd started", map[string]string{
		"version": version,
		"bot":     adapter.BotName(),
	})
	adapter.NotifyAdmin()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := adapter.Run(ctx); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
