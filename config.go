package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"strings"

	"github.com/caarlos0/env/v11"
)

// autoPublicIP asks the server to discover its public address itself.
const autoPublicIP = "auto"

var errNoFlagSet = errors.New("flag parser is required")

// ServerConfig holds the server subcommand configuration.
type ServerConfig struct {
	BindIP         string `env:"ASTEROIDS_BIND_IP" envDefault:"0.0.0.0"`
	PublicIP       string `env:"ASTEROIDS_PUBLIC_IP" envDefault:"auto"`
	Port           uint   `env:"ASTEROIDS_PORT" envDefault:"4761"`
	Name           string `env:"ASTEROIDS_NAME" envDefault:"Asteroids Arena"`
	Password       string `env:"ASTEROIDS_PASSWORD"`
	HostPlayer     bool   `env:"ASTEROIDS_HOST_PLAYER" envDefault:"false"`
	UI             bool   `env:"ASTEROIDS_UI" envDefault:"false"`
	ListPrivate    bool   `env:"ASTEROIDS_LIST_PRIVATE" envDefault:"false"`
	DBPath         string `env:"ASTEROIDS_DB"`
	MatchmakingURL string `env:"ASTEROIDS_MATCHMAKING_URL" envDefault:"http://localhost:8091/api/v1/matchmaking/ephemeral/lobbies"`
	PublicIPURL    string `env:"ASTEROIDS_PUBLIC_IP_URL" envDefault:"https://api.ipify.org/"`
	LogPath        string `env:"ASTEROIDS_LOG"`
}

// ClientConfig holds the client subcommand configuration.
type ClientConfig struct {
	ServerIP       string `env:"ASTEROIDS_SERVER_IP"`
	BindIP         string `env:"ASTEROIDS_BIND_IP" envDefault:"0.0.0.0"`
	Port           uint   `env:"ASTEROIDS_PORT" envDefault:"4761"`
	Password       string `env:"ASTEROIDS_PASSWORD"`
	MatchmakingURL string `env:"ASTEROIDS_MATCHMAKING_URL" envDefault:"http://localhost:8091/api/v1/matchmaking/ephemeral/lobbies"`
	PublicIPURL    string `env:"ASTEROIDS_PUBLIC_IP_URL" envDefault:"https://api.ipify.org/"`
	LogPath        string `env:"ASTEROIDS_LOG" envDefault:"asteroids-client.log"`
}

// ListingConfig holds the listing subcommand configuration.
type ListingConfig struct {
	Addr string `env:"ASTEROIDS_LISTING_ADDR" envDefault:":8091"`
}

// ParseServerConfig loads environment defaults and overlays fs flags.
func ParseServerConfig(fs *flag.FlagSet, args []string) (ServerConfig, error) {
	if fs == nil {
		return ServerConfig{}, errNoFlagSet
	}
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("parse env: %w", err)
	}
	fs.StringVar(&cfg.BindIP, "bind-ip", cfg.BindIP, "IP address to bind the game port on")
	fs.StringVar(&cfg.PublicIP, "public-ip", cfg.PublicIP, `IP address advertised to players, or "auto"`)
	fs.UintVar(&cfg.Port, "port", cfg.Port, "Game port")
	fs.StringVar(&cfg.Name, "name", cfg.Name, "Lobby name")
	fs.StringVar(&cfg.Password, "password", cfg.Password, "Lobby password (empty for none)")
	fs.BoolVar(&cfg.HostPlayer, "host-player", cfg.HostPlayer, "Give the server its own ship")
	fs.BoolVar(&cfg.UI, "ui", cfg.UI, "Run the terminal front-end on the server")
	fs.BoolVar(&cfg.ListPrivate, "list-private", cfg.ListPrivate, "Advertise the lobby even on a non-global address")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Round ledger sqlite path (empty to disable)")
	fs.StringVar(&cfg.MatchmakingURL, "matchmaking-url", cfg.MatchmakingURL, "Lobby listing endpoint")
	fs.StringVar(&cfg.PublicIPURL, "public-ip-url", cfg.PublicIPURL, "Public IP lookup endpoint")
	fs.StringVar(&cfg.LogPath, "log", cfg.LogPath, "Log file (empty for stderr)")
	if err := parseArgs(fs, args); err != nil {
		return ServerConfig{}, err
	}
	if _, err := parseIP(cfg.BindIP); err != nil {
		return ServerConfig{}, fmt.Errorf("bind-ip: %w", err)
	}
	if !strings.EqualFold(cfg.PublicIP, autoPublicIP) {
		if _, err := parseIP(cfg.PublicIP); err != nil {
			return ServerConfig{}, fmt.Errorf("public-ip: %w", err)
		}
	}
	if err := checkPort(cfg.Port); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

// ParseClientConfig loads environment defaults and overlays fs flags.
func ParseClientConfig(fs *flag.FlagSet, args []string) (ClientConfig, error) {
	if fs == nil {
		return ClientConfig{}, errNoFlagSet
	}
	var cfg ClientConfig
	if err := env.Parse(&cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("parse env: %w", err)
	}
	fs.StringVar(&cfg.ServerIP, "ip", cfg.ServerIP, "Server IP to join directly (empty opens the main menu)")
	fs.StringVar(&cfg.BindIP, "bind-ip", cfg.BindIP, "Local IP address to dial from")
	fs.UintVar(&cfg.Port, "port", cfg.Port, "Server game port")
	fs.StringVar(&cfg.Password, "password", cfg.Password, "Lobby password")
	fs.StringVar(&cfg.MatchmakingURL, "matchmaking-url", cfg.MatchmakingURL, "Lobby listing endpoint")
	fs.StringVar(&cfg.PublicIPURL, "public-ip-url", cfg.PublicIPURL, "Public IP lookup endpoint")
	fs.StringVar(&cfg.LogPath, "log", cfg.LogPath, "Log file (the terminal belongs to the game)")
	if err := parseArgs(fs, args); err != nil {
		return ClientConfig{}, err
	}
	if cfg.ServerIP != "" {
		if _, err := parseIP(cfg.ServerIP); err != nil {
			return ClientConfig{}, fmt.Errorf("ip: %w", err)
		}
	}
	if _, err := parseIP(cfg.BindIP); err != nil {
		return ClientConfig{}, fmt.Errorf("bind-ip: %w", err)
	}
	if err := checkPort(cfg.Port); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

// ParseListingConfig loads environment defaults and overlays fs flags.
func ParseListingConfig(fs *flag.FlagSet, args []string) (ListingConfig, error) {
	if fs == nil {
		return ListingConfig{}, errNoFlagSet
	}
	var cfg ListingConfig
	if err := env.Parse(&cfg); err != nil {
		return ListingConfig{}, fmt.Errorf("parse env: %w", err)
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listing HTTP listen address")
	if err := parseArgs(fs, args); err != nil {
		return ListingConfig{}, err
	}
	return cfg, nil
}

func parseArgs(fs *flag.FlagSet, args []string) error {
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

func parseIP(s string) (net.IP, error) {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return nil, fmt.Errorf("invalid ip address %q", s)
	}
	return ip, nil
}

func checkPort(p uint) error {
	if p == 0 || p > 65535 {
		return fmt.Errorf("port %d out of range", p)
	}
	return nil
}
