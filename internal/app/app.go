package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/simp-lee/logger"
	"gorm.io/gorm"

	"github.com/simp-lee/backoffice/internal/backend"
	"github.com/simp-lee/backoffice/internal/config"
	"github.com/simp-lee/backoffice/internal/domain"
	"github.com/simp-lee/backoffice/internal/middleware"
	"github.com/simp-lee/backoffice/internal/module/permission"
	"github.com/simp-lee/backoffice/internal/module/preference"
	"github.com/simp-lee/backoffice/internal/module/resource"
	"github.com/simp-lee/backoffice/web"
)

// App holds the core application dependencies and the HTTP server.
type App struct {
	engine *gin.Engine
	db     *gorm.DB
	logger *logger.Logger
	cfg    *config.Config
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

const shutdownTimeout = 5 * time.Second

var newHTTPServer = func(addr string, handler http.Handler) httpServer {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

var notifyContext = func(parent context.Context, signals ...os.Signal) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, signals...)
}

// New wires the application from cfg: logger, local store, upstream
// client, modules, middleware, templates and routes. Anything opened before
// a failing step is closed again.
func New(cfg *config.Config) (_ *App, err error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	var undo []func()
	defer func() {
		if err == nil {
			return
		}
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}()

	log, err := config.SetupLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}
	undo = append(undo, func() {
		if err := log.Close(); err != nil {
			slog.Error("logger close error", slog.Any("error", err))
		}
	})
	if cfg.Server.Mode == gin.DebugMode && cfg.Server.Host == "0.0.0.0" {
		log.Warn("insecure server config: debug mode on 0.0.0.0 may expose debug behavior and permissive CORS")
	}

	db, err := openStore(&cfg.Database, log.Logger)
	if err != nil {
		return nil, err
	}
	undo = append(undo, func() { closeStore(db, log.Logger) })

	client := backend.NewClient(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Token:   cfg.Backend.Token,
		Timeout: config.Duration(cfg.Backend.Timeout, 30*time.Second),
	}, log.Logger)

	modules, home, err := buildModules(cfg, db, client, log.Logger)
	if err != nil {
		return nil, err
	}

	engine, err := newEngine(cfg, log.Logger)
	if err != nil {
		return nil, err
	}

	csrfSecret, err := resolveCSRFSecret(cfg.Server.Mode, cfg.Server.CSRFSecret)
	if err != nil {
		return nil, err
	}
	if csrfSecret != cfg.Server.CSRFSecret {
		log.Warn("no csrf_secret configured, using random secret in non-release mode (will change on restart)")
	}

	if err := RegisterRoutes(engine, &RouteDeps{
		Modules:    modules,
		DB:         db,
		Checks:     map[string]HealthCheck{"backend": client.Ping},
		Mode:       cfg.Server.Mode,
		CSRFSecret: csrfSecret,
		Home:       home,
	}); err != nil {
		return nil, fmt.Errorf("register routes: %w", err)
	}

	return &App{engine: engine, db: db, logger: log, cfg: cfg}, nil
}

// openStore connects the local database and creates the permission and
// column preference tables. Entities themselves live upstream.
func openStore(cfg *config.DatabaseConfig, log *slog.Logger) (*gorm.DB, error) {
	db, err := config.SetupDatabase(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("setup database: %w", err)
	}
	if err := config.Migrate(db, &domain.RolePermission{}, &domain.ColumnPreference{}); err != nil {
		closeStore(db, log)
		return nil, err
	}
	log.Info("auto migration completed")
	return db, nil
}

// buildModules seeds permissions and assembles the resource, permission and
// preference modules. home renders the landing page listing visible entities.
func buildModules(cfg *config.Config, db *gorm.DB, client *backend.Client, log *slog.Logger) (_ []Module, home gin.HandlerFunc, _ error) {
	registry, err := resource.NewRegistry(cfg.Entities)
	if err != nil {
		return nil, nil, fmt.Errorf("build entity registry: %w", err)
	}

	permSvc := permission.NewPermissionService(
		permission.NewPermissionRepository(db),
		config.Duration(cfg.Permissions.CacheTTL, 5*time.Minute),
		log,
	)
	seed, err := seedBlobs(cfg.Permissions.Seed)
	if err != nil {
		return nil, nil, fmt.Errorf("parse permission seed: %w", err)
	}
	if err := permSvc.Seed(context.Background(), seed); err != nil {
		return nil, nil, fmt.Errorf("seed permissions: %w", err)
	}

	prefSvc := preference.NewPreferenceService(preference.NewPreferenceRepository(db), registry.Tables(), log)

	resourceSvc, err := resource.NewService(resource.ServiceDeps{
		Registry:    registry,
		Backend:     client,
		Permissions: permSvc,
		Preferences: prefSvc,
		Views:       resource.NewViewStore(config.Duration(cfg.Listing.ViewTTL, 30*time.Minute)),
		Logger:      log,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("setup resource service: %w", err)
	}

	resourceModule := resource.NewModule(
		resource.NewResourceHandler(resourceSvc, cfg.Listing.MaxPageSize),
		resource.NewResourcePageHandler(resourceSvc, cfg.Listing.MaxPageSize,
			config.Duration(cfg.Listing.SearchDebounce, 800*time.Millisecond)),
	)
	return []Module{
		resourceModule,
		permission.NewModule(permission.NewPermissionHandler(permSvc)),
		preference.NewModule(preference.NewPreferenceHandler(prefSvc)),
	}, resourceModule.Home(), nil
}

// newEngine builds the gin engine with the global middleware chain and the
// HTML renderer. Debug mode reads templates from disk.
func newEngine(cfg *config.Config, log *slog.Logger) (*gin.Engine, error) {
	if err := validateGinMode(cfg.Server.Mode); err != nil {
		return nil, err
	}
	gin.SetMode(cfg.Server.Mode)
	engine := gin.New()

	engine.Use(
		middleware.Recovery(log),
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{TrustUpstream: false}),
		middleware.Logger(log),
		middleware.CORSWithConfig(resolveCORSConfig(cfg.Server.Mode, cfg.Server.CORS)),
		middleware.Session(middleware.SessionConfig{
			CookieName: cfg.Server.Session.CookieName,
			MaxAge:     config.Duration(cfg.Server.Session.MaxAge, 24*time.Hour),
		}),
		middleware.Credentials(middleware.CredentialsConfig{
			DefaultRole:     cfg.Permissions.DefaultRole,
			TrustRoleHeader: cfg.Permissions.TrustRoleHeader,
		}),
	)
	if rl := cfg.Server.RateLimit; rl.Enabled {
		engine.Use(middleware.RateLimit(rl.RPS, rl.Burst))
	}

	debug := cfg.Server.Mode == gin.DebugMode
	fsys := fs.FS(web.EmbeddedFS)
	if debug {
		dir, err := resolveDebugWebFS()
		if err != nil {
			return nil, fmt.Errorf("resolve debug template fs: %w", err)
		}
		fsys = dir
	}
	renderer, err := NewTemplateRenderer(fsys, debug)
	if err != nil {
		return nil, fmt.Errorf("setup template renderer: %w", err)
	}
	engine.HTMLRender = renderer
	return engine, nil
}

// resolveCSRFSecret returns the configured secret, or a random one outside
// release mode when none is set.
func resolveCSRFSecret(mode, secret string) (string, error) {
	if !isPlaceholderCSRFSecret(secret) {
		return secret, nil
	}
	if mode == gin.ReleaseMode {
		return "", errors.New("csrf_secret must be a non-placeholder value in release mode")
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate csrf secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// seedBlobs converts the configured role seed into permission blobs.
func seedBlobs(seed map[string]map[string]map[string]any) (map[string]domain.PermissionBlob, error) {
	out := make(map[string]domain.PermissionBlob, len(seed))
	for role, modules := range seed {
		blob := make(domain.PermissionBlob, len(modules))
		for module, flags := range modules {
			p, err := domain.ParsePermission(flags)
			if err != nil {
				return nil, fmt.Errorf("role %q module %q: %w", role, module, err)
			}
			blob[module] = p
		}
		out[role] = blob
	}
	return out, nil
}

var placeholderSecrets = []string{"", "change-me-to-a-random-secret", "change-me-in-env"}

func isPlaceholderCSRFSecret(secret string) bool {
	return slices.Contains(placeholderSecrets, strings.ToLower(strings.TrimSpace(secret)))
}

// resolveCORSConfig overlays the configured CORS settings on the defaults.
// Release mode without an allowlist denies every cross-origin request.
func resolveCORSConfig(mode string, cfg config.CORSConfig) middleware.CORSConfig {
	out := middleware.DefaultCORSConfig()
	switch {
	case len(cfg.AllowOrigins) > 0:
		out.AllowOrigins = cfg.AllowOrigins
	case mode == gin.ReleaseMode:
		out.AllowOrigins = []string{}
	}
	if len(cfg.AllowMethods) > 0 {
		out.AllowMethods = cfg.AllowMethods
	}
	if len(cfg.AllowHeaders) > 0 {
		out.AllowHeaders = cfg.AllowHeaders
	}
	out.AllowCredentials = cfg.AllowCredentials
	out.MaxAge = config.Duration(cfg.MaxAge, out.MaxAge)
	return out
}

func validateGinMode(mode string) error {
	switch mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		return nil
	default:
		return fmt.Errorf("invalid server.mode %q: must be one of %q, %q, %q", mode, gin.DebugMode, gin.ReleaseMode, gin.TestMode)
	}
}

// resolveDebugWebFS finds web/ next to the source tree or next to the
// executable.
func resolveDebugWebFS() (fs.FS, error) {
	var candidates []string
	if _, file, _, ok := runtime.Caller(0); ok {
		candidates = append(candidates, filepath.Join(filepath.Dir(file), "..", "..", "web"))
	}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "web"))
	}
	for _, dir := range candidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return os.DirFS(filepath.Clean(dir)), nil
		}
	}
	return nil, errors.New("debug web directory not found")
}

// Run serves HTTP until SIGINT or SIGTERM, then drains in-flight requests
// for up to shutdownTimeout and releases the database and logger.
func (a *App) Run() error {
	switch {
	case a == nil:
		return errors.New("app is nil")
	case a.cfg == nil:
		return errors.New("app config is nil")
	case a.engine == nil:
		return errors.New("app engine is nil")
	}

	log := a.log()
	addr := net.JoinHostPort(a.cfg.Server.Host, strconv.Itoa(a.cfg.Server.Port))
	srv := newHTTPServer(addr, a.engine)

	ctx, stop := notifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server started", slog.String("addr", addr), slog.Int("entities", len(a.cfg.Entities)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := srv.Shutdown(drainCtx); err != nil {
			log.Error("server shutdown error", slog.Any("error", err))
		}
		cancel()
	case err := <-serveErr:
		runErr = fmt.Errorf("server error: %w", err)
	}

	closeStore(a.db, log)
	log.Info("server stopped")
	if a.logger != nil {
		if err := a.logger.Close(); err != nil {
			slog.Error("logger close error", slog.Any("error", err))
		}
	}
	return runErr
}

func (a *App) log() *slog.Logger {
	if a.logger != nil {
		return a.logger.Logger
	}
	return slog.Default()
}

func closeStore(db *gorm.DB, log *slog.Logger) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Error("database close error", slog.Any("error", err))
		return
	}
	log.Info("database connection closed")
}
