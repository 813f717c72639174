package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/mozaichub/internal/logger"
	"github.com/marmos91/mozaichub/pkg/config"
	"github.com/marmos91/mozaichub/pkg/server"
)

// Set at build time with -ldflags "-X main.version=..."
var version = "dev"

const usage = `MozaicHub - self-hosted file sharing

Usage:
  mozaichub <command> [flags]

Commands:
  init      Write a sample configuration file
  start     Start the server
  sweep     Run one deferred deletion sweep and exit
  version   Print the version

Run 'mozaichub <command> -h' for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = runInit(os.Args[2:])
	case "start":
		err = runStart(os.Args[2:])
	case "sweep":
		err = runSweep(os.Args[2:])
	case "version":
		fmt.Printf("mozaichub %s\n", version)
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Error("%v", err)
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("config", "", "Where to write the file (default: "+config.GetDefaultConfigPath()+")")
	force := fs.Bool("force", false, "Overwrite an existing file")
	_ = fs.Parse(args)

	if *path == "" {
		written, err := config.InitConfig(*force)
		if err != nil {
			return err
		}
		fmt.Printf("Configuration written to %s\n", written)
		return nil
	}

	if err := config.InitConfigToPath(*path, *force); err != nil {
		return err
	}
	fmt.Printf("Configuration written to %s\n", *path)
	return nil
}

// loadConfig reads the configuration and applies its logging section.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Configure(cfg.Logging.Format, cfg.Logging.Output); err != nil {
		return nil, err
	}
	logger.SetLevel(cfg.Logging.Level)
	return cfg, nil
}

func runStart(args []string) error {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to the configuration file")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	fmt.Println("MozaicHub - self-hosted file sharing")
	logger.Info("Log level set to: %s", cfg.Logging.Level)
	logger.Info("Metadata store: %s, content store: %s", cfg.Metadata.Type, cfg.Content.Type)

	// An empty bootstrap password is replaced with a random one that is
	// only shown if the account actually gets created
	generatedPassword := ""
	if cfg.Auth.FirstAdmin.Password == "" {
		generatedPassword, err = randomPassword()
		if err != nil {
			return err
		}
		cfg.Auth.FirstAdmin.Password = generatedPassword
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := config.InitializeMetrics(cfg)

	reg, err := config.CreateRegistry(ctx, cfg, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := reg.Close(); err != nil {
			logger.Error("Failed to close stores: %v", err)
		}
	}()

	admin, created, err := reg.Identity.EnsureFirstAdmin(ctx)
	if err != nil {
		return err
	}
	if created && generatedPassword != "" {
		logger.Warn("Generated password for %s: %s", admin.Username, generatedPassword)
	}

	adapters, err := config.CreateAdapters(cfg, m)
	if err != nil {
		return err
	}

	srv := server.New(reg, server.Options{
		StopTimeout: cfg.Server.ShutdownTimeout,
		Metrics:     m.Server,
	})
	for _, a := range adapters {
		if err := srv.AddAdapter(a); err != nil {
			return err
		}
	}

	logger.Info("Server is running. Press Ctrl+C to stop.")

	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("Server stopped gracefully")
	return nil
}

func runSweep(args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to the configuration file")
	orphans := fs.Bool("orphans", false, "Also collect unreferenced artifacts")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg, err := config.CreateRegistry(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = reg.Close() }()

	stats, err := reg.Sweeper.RunNow(ctx, *orphans)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	fmt.Println(stats.Summary())
	if stats.Sweep != nil && stats.Sweep.Failed() > 0 {
		return fmt.Errorf("%d artifact(s) could not be removed", stats.Sweep.Failed())
	}
	return nil
}

func randomPassword() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate admin password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
