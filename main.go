package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
)

const telemetryShutdownTimeout = 5 * time.Second

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <server|client|listing> [flags]\n", os.Args[0])
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "server":
		err = runServer(ctx, args)
	case "client":
		err = runClient(ctx, args)
	case "listing":
		err = runListing(ctx, args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

// withTelemetry runs fn with tracing configured for service.
func withTelemetry(ctx context.Context, service string, fn func() error) error {
	shutdown, err := SetupTelemetry(ctx, service)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			log.Printf("%s otel shutdown: %v", service, err)
		}
	}()
	return fn()
}

// logToFile sends log output to path. The returned func closes the file.
func logToFile(path string) (func(), error) {
	if path == "" {
		return func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(f)
	return func() {
		log.SetOutput(os.Stderr)
		f.Close()
	}, nil
}

func runServer(ctx context.Context, args []string) error {
	cfg, err := ParseServerConfig(flag.NewFlagSet("server", flag.ExitOnError), args)
	if err != nil {
		return err
	}
	log.SetPrefix("[SERVER] ")
	closeLog, err := logToFile(cfg.LogPath)
	if err != nil {
		return err
	}
	defer closeLog()

	return withTelemetry(ctx, "asteroids-server", func() error {
		var ledger *Ledger
		if cfg.DBPath != "" {
			db, err := OpenDB(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()
			ledger = NewLedger(db)
			defer ledger.Close()
		}

		game := NewGame(ctx, GameOptions{
			MatchmakingURL: cfg.MatchmakingURL,
			PublicIPURL:    cfg.PublicIPURL,
			Ledger:         ledger,
		})
		opts := ListenOptions{
			BindIP:      net.ParseIP(cfg.BindIP),
			Port:        uint16(cfg.Port),
			Name:        cfg.Name,
			Password:    cfg.Password,
			HostPlayer:  cfg.HostPlayer,
			ListPrivate: cfg.ListPrivate,
		}
		if !strings.EqualFold(cfg.PublicIP, autoPublicIP) {
			opts.PublicIP = net.ParseIP(cfg.PublicIP)
		}
		if err := game.Listen(opts); err != nil {
			return err
		}
		if cfg.UI {
			ui, err := startUI()
			if err != nil {
				return err
			}
			defer ui.Close()
			game.AttachUI(ui)
		}
		return game.Run()
	})
}

func runClient(ctx context.Context, args []string) error {
	cfg, err := ParseClientConfig(flag.NewFlagSet("client", flag.ExitOnError), args)
	if err != nil {
		return err
	}
	log.SetPrefix("[CLIENT] ")
	closeLog, err := logToFile(cfg.LogPath)
	if err != nil {
		return err
	}
	defer closeLog()

	return withTelemetry(ctx, "asteroids-client", func() error {
		game := NewGame(ctx, GameOptions{
			MatchmakingURL: cfg.MatchmakingURL,
			PublicIPURL:    cfg.PublicIPURL,
		})
		if cfg.ServerIP != "" {
			err := game.Connect(ConnectOptions{
				BindIP:   net.ParseIP(cfg.BindIP),
				ServerIP: net.ParseIP(cfg.ServerIP),
				Port:     uint16(cfg.Port),
				Password: cfg.Password,
			})
			if err != nil {
				// the menu shows the error
				log.Printf("connect: %v", err)
			}
		}
		ui, err := startUI()
		if err != nil {
			return err
		}
		defer ui.Close()
		game.AttachUI(ui)
		return game.Run()
	})
}

func startUI() (*UI, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("open terminal: %w", err)
	}
	ui, err := NewUI(screen)
	if err != nil {
		return nil, fmt.Errorf("init terminal: %w", err)
	}
	return ui, nil
}

func runListing(ctx context.Context, args []string) error {
	cfg, err := ParseListingConfig(flag.NewFlagSet("listing", flag.ExitOnError), args)
	if err != nil {
		return err
	}
	log.SetPrefix("[LISTING] ")

	return withTelemetry(ctx, "asteroids-listing", func() error {
		srv := &http.Server{Addr: cfg.Addr, Handler: ListingRoutes(NewListing())}
		errc := make(chan error, 1)
		go func() {
			log.Printf("listing on %s", cfg.Addr)
			errc <- srv.ListenAndServe()
		}()
		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}
		log.Println("Shutting down...")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
}
