// ABOUTME: Gateway orchestrator that wires the tool runtime, ledger, and MCP server
// ABOUTME: Runs the HTTP listener (TCP or tailnet), optional gRPC health, and graceful shutdown

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
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/sei-mcp-gateway/internal/builtins"
	"github.com/2389/sei-mcp-gateway/internal/config"
	"github.com/2389/sei-mcp-gateway/internal/mcp"
	"github.com/2389/sei-mcp-gateway/internal/signer"
	"github.com/2389/sei-mcp-gateway/internal/store"
	"github.com/2389/sei-mcp-gateway/internal/tools"
)

// Environment variables read at startup.
const (
	EnvDBPath     = "SEI_MCP_DB_PATH"
	EnvPrivateKey = "SEI_PRIVATE_KEY"
)

// defaultShutdownTimeout is the grace period for in-flight requests once the run context ends.
const defaultShutdownTimeout = 5 * time.Second

// Gateway owns every server component and their lifecycle.
type Gateway struct {
	config   *config.Config
	store    store.Store
	keys     *signer.KeyStore
	registry *tools.Registry
	router   *tools.Router
	logger   *slog.Logger

	mcpServer   *mcp.Server
	httpServer  *http.Server
	grpcServer  *grpc.Server   // nil unless server.grpc_addr is set
	health      *health.Server // nil with grpcServer
	tsnetServer *tsnet.Server

	addrMu   sync.RWMutex
	httpAddr net.Addr

	shutdownTimeout time.Duration
	shutdownOnce    sync.Once
	shutdownErr     error
}

// initStore opens the ledger named by config or the environment.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv(EnvDBPath); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// initKeys creates the key store, seeding it from the environment when set.
func initKeys(logger *slog.Logger) *signer.KeyStore {
	keys := signer.NewKeyStore(logger.With("component", "signer"))
	if raw := os.Getenv(EnvPrivateKey); raw != "" {
		if err := keys.Update(raw); err != nil {
			logger.Warn("ignoring "+EnvPrivateKey, "error", err)
		}
	}
	return keys
}

// New creates a new Gateway instance with the given configuration.
// Built-in tools are registered and the registry is ready when New returns.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	keys := initKeys(logger)

	registry := tools.NewRegistry(logger.With("component", "tool-registry"))
	if err := builtins.RegisterAll(registry, keys); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("registering builtin packs: %w", err)
	}

	router := tools.NewRouter(tools.RouterConfig{
		Registry:      registry,
		Logger:        logger.With("component", "tool-router"),
		Timeout:       cfg.Tools.CallTimeout,
		MaxConcurrent: cfg.Tools.MaxConcurrent,
		Recorder:      s,
	})

	mcpServer, err := mcp.NewServer(mcp.Config{
		Registry:          registry,
		Router:            router,
		Keys:              keys,
		Events:            s,
		Logger:            logger.With("component", "mcp"),
		ServerName:        cfg.MCP.ServerName,
		ServerVersion:     cfg.MCP.ServerVersion,
		KeepaliveInterval: cfg.MCP.KeepaliveInterval,
		DedupeWindow:      cfg.MCP.DedupeWindow,
	})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	gw := &Gateway{
		config:    cfg,
		store:     s,
		keys:      keys,
		registry:  registry,
		router:    router,
		logger:    logger.With("component", "gateway"),
		mcpServer: mcpServer,

		shutdownTimeout: defaultShutdownTimeout,
	}

	mux := http.NewServeMux()
	mcpServer.RegisterRoutes(mux)
	gw.registerAPIRoutes(mux)

	// No write timeout: SSE responses stay open for the life of the session.
	gw.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           mcp.WithCORS(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Server.GRPCAddr != "" {
		gw.grpcServer, gw.health = newHealthServer()
	}

	registry.MarkReady()
	gw.setServing(true)

	return gw, nil
}

// Handler returns the HTTP handler serving every endpoint.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// MCP returns the MCP server.
func (g *Gateway) MCP() *mcp.Server {
	return g.mcpServer
}

// Store returns the call ledger.
func (g *Gateway) Store() store.Store {
	return g.store
}

// Addr returns the bound HTTP address once Run is listening, or nil.
func (g *Gateway) Addr() net.Addr {
	g.addrMu.RLock()
	defer g.addrMu.RUnlock()
	return g.httpAddr
}

// Run starts the servers and blocks until ctx is canceled or a server fails.
// Returns nil on graceful shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	httpLn, grpcLn, baseURL, err := g.setupListeners(ctx)
	if err != nil {
		_ = g.Shutdown(context.Background())
		return err
	}

	g.addrMu.Lock()
	g.httpAddr = httpLn.Addr()
	g.addrMu.Unlock()

	g.logEndpoints(baseURL, grpcLn)

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if err := g.httpServer.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	if grpcLn != nil {
		eg.Go(func() error {
			if err := g.grpcServer.Serve(grpcLn); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("gRPC server: %w", err)
			}
			return nil
		})
	}

	eg.Go(func() error {
		<-egCtx.Done()
		if ctx.Err() != nil {
			g.logger.Info("context canceled, initiating shutdown")
		}
		return g.gracefulShutdown()
	})

	return eg.Wait()
}

// gracefulShutdown runs Shutdown with a fresh deadline; the run context is already done.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), g.shutdownTimeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// setupListeners creates the HTTP (and optional gRPC) listeners on TCP or the tailnet.
func (g *Gateway) setupListeners(ctx context.Context) (httpLn, grpcLn net.Listener, baseURL string, err error) {
	if g.config.Tailscale.Enabled {
		return g.setupTailscaleListeners(ctx)
	}

	httpLn, err = net.Listen("tcp", g.config.HTTPAddr())
	if err != nil {
		return nil, nil, "", fmt.Errorf("listening on HTTP address: %w", err)
	}

	if g.grpcServer != nil {
		grpcLn, err = net.Listen("tcp", g.config.Server.GRPCAddr)
		if err != nil {
			_ = httpLn.Close()
			return nil, nil, "", fmt.Errorf("listening on gRPC address: %w", err)
		}
	}

	return httpLn, grpcLn, displayURL(httpLn.Addr()), nil
}

// displayURL turns a listener address into a URL a local client can open.
func displayURL(addr net.Addr) string {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return "http://" + addr.String()
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func (g *Gateway) logEndpoints(baseURL string, grpcLn net.Listener) {
	g.logger.Info("MCP server running", "url", baseURL)
	g.logger.Info("SSE endpoint", "url", baseURL+"/sse")
	g.logger.Info("messages endpoint", "url", baseURL+"/messages?sessionId=<id>")
	g.logger.Info("health endpoint", "url", baseURL+"/health")
	g.logger.Info("config endpoint", "url", baseURL+"/config")
	if grpcLn != nil {
		g.logger.Info("gRPC health service listening", "addr", grpcLn.Addr().String())
	}
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) string {
	if configured != "" {
		return configured
	}
	return filepath.Join(config.DataDir(), "tailscale")
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
// An empty key is allowed: tsnet then prints a login URL.
func resolveTailscaleAuthKey(configured string) string {
	if configured != "" {
		return configured
	}
	return os.Getenv("TS_AUTHKEY")
}

// setupTailscaleListeners joins the tailnet and listens on :80 (and the gRPC port).
func (g *Gateway) setupTailscaleListeners(ctx context.Context) (httpLn, grpcLn net.Listener, baseURL string, err error) {
	tsCfg := g.config.Tailscale

	stateDir := resolveTailscaleStateDir(tsCfg.StateDir)
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, nil, "", fmt.Errorf("creating tailscale state dir: %w", err)
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   resolveTailscaleAuthKey(tsCfg.AuthKey),
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		return nil, nil, "", fmt.Errorf("starting tailscale: %w", err)
	}
	baseURL = "http://" + tailnetHost(tsCfg.Hostname, status)
	g.logger.Info("tailscale node ready", "url", baseURL)

	httpLn, err = g.tsnetServer.Listen("tcp", ":80")
	if err != nil {
		return nil, nil, "", fmt.Errorf("listening on tailscale HTTP port: %w", err)
	}

	if g.grpcServer != nil {
		_, port, splitErr := net.SplitHostPort(g.config.Server.GRPCAddr)
		if splitErr != nil {
			_ = httpLn.Close()
			return nil, nil, "", fmt.Errorf("parsing server.grpc_addr: %w", splitErr)
		}
		grpcLn, err = g.tsnetServer.Listen("tcp", ":"+port)
		if err != nil {
			_ = httpLn.Close()
			return nil, nil, "", fmt.Errorf("listening on tailscale gRPC port: %w", err)
		}
	}

	return httpLn, grpcLn, baseURL, nil
}

// tailnetHost prefers the node's MagicDNS name over the bare hostname.
func tailnetHost(hostname string, status *ipnstate.Status) string {
	if status != nil && status.Self != nil && status.Self.DNSName != "" {
		return strings.TrimSuffix(status.Self.DNSName, ".")
	}
	return hostname
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops accepting work, ends every session, and releases resources.
// Safe to call more than once; later calls return the first result.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.shutdownOnce.Do(func() {
		g.shutdownErr = g.shutdown(ctx)
	})
	return g.shutdownErr
}

func (g *Gateway) shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")
	g.setServing(false)

	// New streams are refused and open ones end first so they do not hold HTTP shutdown.
	g.mcpServer.Close()

	// Requests still running at the deadline are cut off, not reported as failures.
	if err := g.httpServer.Shutdown(ctx); err != nil {
		g.logger.Warn("grace period over, closing remaining HTTP connections", "error", err)
		if err := g.httpServer.Close(); err != nil {
			g.logger.Debug("closing HTTP server", "error", err)
		}
	}
	if err := g.router.Shutdown(ctx); err != nil {
		g.logger.Warn("abandoning running tool handlers", "count", g.router.Running(), "error", err)
	}

	var errs []error

	g.shutdownGRPCServer(ctx)

	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}
	errs = appendCloseError(errs, "store close", g.store.Close())
	g.registry.Close()

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	g.logger.Info("gateway stopped")
	return nil
}
