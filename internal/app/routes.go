package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/simp-lee/backoffice/internal/middleware"
	"github.com/simp-lee/backoffice/web"
)

const (
	healthCheckTimeout = 2 * time.Second
	staticMaxAge       = "public, max-age=86400"
)

// HealthCheck checks one dependency for /health.
type HealthCheck func(ctx context.Context) error

// RouteDeps holds everything RegisterRoutes wires together.
type RouteDeps struct {
	Modules []Module
	DB      *gorm.DB
	// Checks are reported by /health next to "database".
	Checks     map[string]HealthCheck
	Mode       string
	CSRFSecret string
	// Home serves "/". Nil renders home.html with only a CSRF token.
	Home gin.HandlerFunc
}

// RegisterRoutes mounts static assets, /health, the home page and every
// module's API and page routes on r.
func RegisterRoutes(r *gin.Engine, deps *RouteDeps) error {
	switch {
	case r == nil:
		return errors.New("router is nil")
	case deps == nil:
		return errors.New("route dependencies are nil")
	case len(deps.Modules) == 0:
		return errors.New("at least one module is required")
	case strings.TrimSpace(deps.CSRFSecret) == "":
		return errors.New("csrf secret is required")
	}

	if err := registerStaticRoutes(r, deps.Mode); err != nil {
		return fmt.Errorf("register static routes: %w", err)
	}

	checks := map[string]HealthCheck{"database": databaseCheck(deps.DB)}
	maps.Copy(checks, deps.Checks)
	r.GET("/health", healthHandler(checks))

	csrf := middleware.CSRF(deps.CSRFSecret)
	home := deps.Home
	if home == nil {
		home = func(c *gin.Context) {
			c.HTML(http.StatusOK, "home.html", gin.H{"CSRFToken": middleware.GetCSRFToken(c)})
		}
	}
	r.GET("/", csrf, home)

	api := r.Group("/api/v1")
	pages := r.Group("/", csrf)
	for i, m := range deps.Modules {
		if m == nil {
			return fmt.Errorf("module at index %d is nil", i)
		}
		m.RegisterRoutes(api, pages)
	}

	r.NoRoute(noRouteHandler())
	return nil
}

func databaseCheck(db *gorm.DB) HealthCheck {
	return func(ctx context.Context) error {
		if db == nil {
			return errors.New("database not configured")
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

// healthHandler runs every check under the request context and answers 503
// with status "degraded" when any of them fails.
func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		code, status := http.StatusOK, "ok"
		components := make(gin.H, len(checks))
		for name, check := range checks {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
			err := check(ctx)
			cancel()
			if err != nil {
				code, status = http.StatusServiceUnavailable, "degraded"
				components[name] = "error"
				continue
			}
			components[name] = "ok"
		}
		c.JSON(code, gin.H{"status": status, "components": components})
	}
}

func noRouteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		renderError(c, http.StatusNotFound, "not found")
	}
}

// registerStaticRoutes serves web/static from disk in debug mode and from the
// embedded copy, with a cache header, otherwise.
func registerStaticRoutes(r *gin.Engine, mode string) error {
	if mode == gin.DebugMode {
		dir, err := debugStaticDir()
		if err != nil {
			return err
		}
		r.GET("/static/*filepath", gin.WrapH(http.StripPrefix("/static", http.FileServer(http.Dir(dir)))))
		return nil
	}

	staticFS, err := fs.Sub(web.EmbeddedFS, "static")
	if err != nil {
		return fmt.Errorf("sub static filesystem: %w", err)
	}
	r.GET("/static/*filepath", cacheStaticHandler(http.FS(staticFS)))
	return nil
}

func debugStaticDir() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("resolve source path")
	}
	dir := filepath.Join(filepath.Dir(file), "..", "..", "web", "static")
	if _, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("stat static directory: %w", err)
	}
	return dir, nil
}

func cacheStaticHandler(fsys http.FileSystem) gin.HandlerFunc {
	files := http.StripPrefix("/static", http.FileServer(fsys))
	return func(c *gin.Context) {
		c.Header("Cache-Control", staticMaxAge)
		files.ServeHTTP(c.Writer, c.Request)
	}
}
