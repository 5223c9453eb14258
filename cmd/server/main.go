package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/llmgate/llmgate/internal/adapter"
	"github.com/llmgate/llmgate/internal/api"
	geminiauth "github.com/llmgate/llmgate/internal/auth/gemini"
	"github.com/llmgate/llmgate/internal/config"
	"github.com/llmgate/llmgate/internal/logging"
	"github.com/llmgate/llmgate/internal/pool"
	openaiclaude "github.com/llmgate/llmgate/internal/translator/openai/claude"
	"github.com/llmgate/llmgate/internal/usage"
	"github.com/llmgate/llmgate/internal/watcher"

	_ "github.com/llmgate/llmgate/internal/translator"
)

func main() {
	var login bool
	var credsFile string
	var configPath string

	flag.BoolVar(&login, "login", false, "run the Google OAuth flow and save credentials")
	flag.StringVar(&credsFile, "creds-file", "oauth_creds.json", "credential file path for -login")
	flag.StringVar(&configPath, "config", "", "configuration file path")
	flag.Parse()

	logging.SetupBaseLogger()

	if configPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			log.Fatalf("failed to get working directory: %v", err)
		}
		configPath = path.Join(wd, "config.yaml")
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logging.SetLogLevel(cfg.Debug)
	if err = logging.ConfigureLogOutput(cfg.LoggingToFile); err != nil {
		log.Fatalf("failed to configure log output: %v", err)
	}

	if login {
		doLogin(credsFile)
		return
	}
	startService(cfg, configPath)
}

// doLogin runs the interactive consent flow and waits for the credential
// file to appear.
func doLogin(credsFile string) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	creds, err := geminiauth.WaitForBrowserFlow(ctx, geminiauth.AuthURL(uuid.NewString()), credsFile)
	if err != nil {
		log.Fatalf("login failed: %v", err)
	}
	if err = creds.Save(credsFile); err != nil {
		log.Fatalf("failed to save credentials: %v", err)
	}
	log.Infof("credentials saved to %s", credsFile)
}

func startService(cfg *config.Config, configPath string) {
	if cfg.OpenAIReasoningMaxTokens > 0 {
		openaiclaude.ReasoningMaxTokens = int64(cfg.OpenAIReasoningMaxTokens)
	}

	pools, err := pool.LoadPools(cfg.ProviderPoolsFilePath)
	if err != nil {
		log.Fatalf("failed to load provider pools: %v", err)
	}

	store, err := usage.Open(cfg.UsageStorePath)
	if err != nil {
		log.Fatalf("failed to open usage store: %v", err)
	}

	factory := adapter.NewFactory(cfg.RequestMaxRetries, cfg.RequestBaseDelay(),
		time.Duration(cfg.CronNearMinutes)*time.Minute)
	manager := pool.NewManager(cfg, pools, store, pool.AdapterProbe(factory))
	orchestrator := api.NewOrchestrator(cfg, manager, factory)
	server := api.NewServer(cfg, orchestrator)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = watcher.Watch(ctx, configPath, func(next *config.Config) {
		logging.SetLogLevel(next.Debug)
		if err := logging.ConfigureLogOutput(next.LoggingToFile); err != nil {
			log.Warnf("failed to reconfigure log output: %v", err)
		}
		if next.OpenAIReasoningMaxTokens > 0 {
			openaiclaude.ReasoningMaxTokens = int64(next.OpenAIReasoningMaxTokens)
		}
		manager.UpdateConfig(next)
		orchestrator.UpdateConfig(next)
	})
	if err != nil {
		log.Warnf("config watcher unavailable: %v", err)
	}

	manager.StartAutoHealthChecks(ctx)

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Run() }()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err = <-serveErr:
		if err != nil {
			log.Errorf("server error: %v", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err = server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("server shutdown: %v", err)
	}
	manager.Shutdown()
	if err = store.Close(); err != nil {
		log.Warnf("usage store close: %v", err)
	}
}
