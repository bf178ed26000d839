package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Default configuration values (production)
const (
	DefaultDomain     = "rooms.deepcode.dev"
	DefaultSTUN       = "stun:stun.l.google.com:19302"
	DefaultAddr       = ":8080"
	DefaultOfferDelay = time.Second

	DefaultSendBuffer      = 256
	DefaultShutdownTimeout = 5 * time.Second
)

// defaultSTUNServers is the static list of public STUN endpoints.
var defaultSTUNServers = []string{
	DefaultSTUN,
	"stun:stun1.l.google.com:19302",
}

// Config holds participant (client) configuration
type Config struct {
	// ServerURL is the signaling websocket URL
	ServerURL string

	// APIURL is the HTTP base URL of the same server
	APIURL string

	DisplayName string

	// ICE servers for WebRTC
	STUNServers []string
	TURNServer  string
	TURNUser    string
	TURNPass    string
	ForceRelay  bool

	// OfferDelay is the settling grace period before an initiator sends its offer
	OfferDelay time.Duration
}

// Options for loading config with CLI flag overrides
type Options struct {
	Domain      string
	ServerURL   string
	DisplayName string
	STUNServer  string
	TURNServer  string
	TURNUser    string
	TURNPass    string
	ForceRelay  bool
	OfferDelay  time.Duration
}

// ServerConfig holds signaling server configuration
type ServerConfig struct {
	Addr            string
	AllowedOrigins  []string
	SendBuffer      int
	ShutdownTimeout time.Duration
}

// ServerOptions for loading server config with CLI flag overrides
type ServerOptions struct {
	Addr           string
	AllowedOrigins []string
}

// loadDotEnv loads a .env file from the working directory if one exists.
// Values already present in the environment win.
func loadDotEnv() {
	_ = godotenv.Load()
}

// Load reads participant configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables (including a .env file)
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	loadDotEnv()

	serverURL := first(opts.ServerURL, os.Getenv("SERVER_URL"))
	if serverURL == "" {
		domain := first(opts.Domain, os.Getenv("DOMAIN"), DefaultDomain)
		serverURL = fmt.Sprintf("wss://%s/ws", domain)
	}

	apiURL, err := apiBase(serverURL)
	if err != nil {
		return nil, err
	}

	stun := defaultSTUNServers
	if s := first(opts.STUNServer, os.Getenv("STUN_SERVER")); s != "" {
		stun = strings.Fields(strings.ReplaceAll(s, ",", " "))
	}

	displayName := first(opts.DisplayName, os.Getenv("DISPLAY_NAME"))
	if displayName == "" {
		displayName = defaultDisplayName()
	}

	offerDelay := opts.OfferDelay
	if offerDelay <= 0 {
		offerDelay, err = envDuration("OFFER_DELAY", DefaultOfferDelay)
		if err != nil {
			return nil, err
		}
	}

	forceRelay := opts.ForceRelay
	if !forceRelay {
		forceRelay, _ = strconv.ParseBool(os.Getenv("FORCE_RELAY"))
	}

	cfg := &Config{
		ServerURL:   serverURL,
		APIURL:      apiURL,
		DisplayName: displayName,
		STUNServers: stun,
		TURNServer:  first(opts.TURNServer, os.Getenv("TURN_SERVER")),
		TURNUser:    first(opts.TURNUser, os.Getenv("TURN_USERNAME")),
		TURNPass:    first(opts.TURNPass, os.Getenv("TURN_PASSWORD")),
		ForceRelay:  forceRelay,
		OfferDelay:  offerDelay,
	}

	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}

	return cfg, nil
}

// LoadServer reads server configuration with the same priority as Load.
func LoadServer(opts ServerOptions) (*ServerConfig, error) {
	loadDotEnv()

	addr := first(opts.Addr, os.Getenv("ADDR"))
	if addr == "" {
		if port := os.Getenv("PORT"); port != "" {
			addr = ":" + port
		} else {
			addr = DefaultAddr
		}
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = splitList(os.Getenv("ALLOWED_ORIGINS"))
	}

	sendBuffer := DefaultSendBuffer
	if v := os.Getenv("SEND_BUFFER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid SEND_BUFFER %q", v)
		}
		sendBuffer = n
	}

	shutdown, err := envDuration("SHUTDOWN_TIMEOUT", DefaultShutdownTimeout)
	if err != nil {
		return nil, err
	}

	return &ServerConfig{
		Addr:            addr,
		AllowedOrigins:  origins,
		SendBuffer:      sendBuffer,
		ShutdownTimeout: shutdown,
	}, nil
}

// GetRoomLink returns the shareable URL for a room ID
func (c *Config) GetRoomLink(roomID string) string {
	return fmt.Sprintf("%s/r/%s", c.APIURL, url.PathEscape(roomID))
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	return c.STUNServers
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
		fmt.Sprintf("turns:%s:5349?transport=tcp", strings.TrimPrefix(c.TURNServer, "turn:")),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

// apiBase derives the HTTP(S) origin from a websocket URL.
func apiBase(wsURL string) (string, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "wss":
		u.Scheme = "https"
	case "ws":
		u.Scheme = "http"
	default:
		return "", fmt.Errorf("invalid server URL scheme %q", u.Scheme)
	}
	u.Path, u.RawQuery = "", ""
	return strings.TrimSuffix(u.String(), "/"), nil
}

func defaultDisplayName() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "guest"
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
