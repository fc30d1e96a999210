// ABOUTME: Gateway orchestrator that wires the store, services, and HTTP server
// ABOUTME: Manages listener setup (TCP or Tailscale), the sweep loop, and shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/tether/internal/auth"
	"github.com/2389/tether/internal/config"
	"github.com/2389/tether/internal/friends"
	"github.com/2389/tether/internal/identity"
	"github.com/2389/tether/internal/messages"
	"github.com/2389/tether/internal/store"
)

// Gateway orchestrates the tether server components.
// It manages the HTTP server for the friends/chat API and the background
// reconciliation sweep.
type Gateway struct {
	config      *config.Config
	store       store.Store
	friends     *friends.Service
	gate        *friends.Gate
	sweeper     *friends.Sweeper
	messages    *messages.Service
	broadcaster *messages.SnapshotBroadcaster
	identity    identity.Resolver
	verifier    *auth.JWTVerifier
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger
}

// initStore creates and returns a store based on config and environment.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("TETHER_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	resolver := identity.NewClient(cfg.Identity.BaseURL, cfg.Identity.APIKey, nil, logger)

	broadcaster := messages.NewSnapshotBroadcaster(logger)
	friendSvc := friends.NewService(s, resolver, logger)

	gw := &Gateway{
		config:      cfg,
		store:       s,
		friends:     friendSvc,
		gate:        friends.NewGate(friendSvc),
		sweeper:     friends.NewSweeper(s, cfg.Sweep.Interval, logger),
		messages:    messages.NewService(s, broadcaster, logger),
		broadcaster: broadcaster,
		identity:    resolver,
		verifier:    auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret)),
		logger:      logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()

	// Health endpoint - no auth required
	mux.HandleFunc("/health", gw.handleHealth)

	// API endpoints - always behind the JWT middleware
	gw.registerHTTPAPIRoutes(mux)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// registerHTTPAPIRoutes registers the authenticated API routes on the mux.
func (g *Gateway) registerHTTPAPIRoutes(mux *http.ServeMux) {
	authMiddleware := auth.Middleware(g.verifier)
	mux.Handle("/api/receiver-id", authMiddleware(http.HandlerFunc(g.handleReceiverID)))
	mux.Handle("/api/friends", authMiddleware(http.HandlerFunc(g.handleListFriends)))
	mux.Handle("/api/friends/details", authMiddleware(http.HandlerFunc(g.handleFriendDetails)))
	mux.Handle("/api/friends/requests", authMiddleware(http.HandlerFunc(g.handleFriendRequests)))
	mux.Handle("/api/friends/requests/accept", authMiddleware(http.HandlerFunc(g.handleAcceptRequest)))
	mux.Handle("/api/friends/requests/reject", authMiddleware(http.HandlerFunc(g.handleRejectRequest)))
	mux.Handle("/api/chats/", authMiddleware(http.HandlerFunc(g.handleChatRoutes)))
}

// Run starts the gateway server and blocks until the context is canceled.
// Returns nil on graceful shutdown (context canceled), or an error if the
// server fails.
func (g *Gateway) Run(ctx context.Context) error {
	httpListener, err := g.setupListeners(ctx)
	if err != nil {
		return err
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go g.sweeper.Run(sweepCtx)

	errCh := g.startServer(httpListener)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// setupListeners creates a listener based on configuration (Tailscale or TCP).
func (g *Gateway) setupListeners(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		g.warnIgnoredAddresses()
		return g.setupTailscaleListener(ctx)
	}
	return g.setupTCPListener()
}

// warnIgnoredAddresses logs a warning if a server address is configured but Tailscale is enabled.
func (g *Gateway) warnIgnoredAddresses() {
	if g.config.Server.HTTPAddr != "" {
		g.logger.Warn("server.http_addr is ignored when tailscale is enabled",
			"http_addr", g.config.Server.HTTPAddr,
		)
	}
}

// setupTCPListener creates a standard TCP listener for HTTP.
func (g *Gateway) setupTCPListener() (net.Listener, error) {
	g.logger.Info("starting gateway", "http_addr", g.config.Server.HTTPAddr)

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// startServer starts the HTTP server in a goroutine, returning an error channel.
func (g *Gateway) startServer(httpLn net.Listener) chan error {
	errCh := make(chan error, 1)

	go func() {
		g.logger.Info("HTTP server listening", "addr", httpLn.Addr().String())
		if err := g.httpServer.Serve(httpLn); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// waitForShutdownSignal waits for context cancellation or a server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "tether", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable (get one at https://login.tailscale.com/admin/settings/keys)")
	}
	return authKey, nil
}

// setupTailscaleListener creates a tsnet server and returns the HTTP listener.
func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}

	g.logTailscaleStatus(tsCfg.Hostname, status)

	if tsCfg.Funnel {
		g.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err := g.tsnetServer.ListenFunnel("tcp", ":443")
		if err != nil {
			_ = g.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale funnel port: %w", err)
		}
		return ln, nil
	}

	ln, err := g.tsnetServer.Listen("tcp", ":80")
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
	}
	return ln, nil
}

// logTailscaleStatus logs info about the tailscale node status.
func (g *Gateway) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	g.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown gracefully stops the gateway server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}

	g.broadcaster.Close()
	errs = appendCloseError(errs, "store close", g.store.Close())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
