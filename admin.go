// admin.go - privacy-conscious visitor tracking and the admin area
package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	zlog "github.com/rs/zerolog/log"

	"github.com/Zachkp/folio/internal/config"
	"github.com/Zachkp/folio/internal/store"
)

type adminAuth struct {
	token       string
	hashingSalt string
	username    string
	password    string
	enabled     bool
}

// newAdminAuth generates the session token and hashing salt for this process.
// Without configured credentials the admin area only exists in debug mode,
// where it falls back to development defaults.
func newAdminAuth(cfg config.AdminConfig) *adminAuth {
	a := &adminAuth{
		token:       generateAdminToken(),
		hashingSalt: generateAdminToken(), // Use for IP hashing
		username:    cfg.Username,
		password:    cfg.Password,
		enabled:     true,
	}

	if a.username == "" || a.password == "" {
		if gin.Mode() != gin.DebugMode {
			a.enabled = false
			zlog.Warn().Msg("Admin area disabled. Set ADMIN_USERNAME and ADMIN_PASSWORD to enable it.")
			return a
		}
		// Default credentials for development only
		if a.username == "" {
			a.username = "admin"
			zlog.Warn().Msg("Using default admin username. Set ADMIN_USERNAME environment variable.")
		}
		if a.password == "" {
			a.password = "admin123"
			zlog.Warn().Msg("Using default admin password. Set ADMIN_PASSWORD environment variable.")
		}
	}

	if gin.Mode() == gin.DebugMode {
		zlog.Debug().Str("token", a.token).Msg("Admin token (dev only)")
	}
	return a
}

func generateAdminToken() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		zlog.Fatal().Err(err).Msg("Failed to generate admin token")
	}
	return hex.EncodeToString(bytes)
}

// hash is consistent per value for the life of the process.
func (a *adminAuth) hash(v string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(v) + a.hashingSalt))
	return hex.EncodeToString(sum[:])[:16]
}

func (a *adminAuth) checkCredentials(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	return userOK && passOK
}

// Middleware to check admin authentication
func (a *adminAuth) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie("admin_token")
		if err != nil || subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) != 1 {
			c.Redirect(http.StatusFound, "/admin/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

// Privacy-conscious visitor tracking middleware. Only full page loads are
// counted; HTMX fragments, the admin area and the privacy page are skipped.
func (s *site) visitorTrackingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if c.Request.Method != http.MethodGet ||
			c.GetHeader("HX-Request") == "true" ||
			strings.HasPrefix(path, "/view/") ||
			strings.HasPrefix(path, "/admin/") ||
			strings.HasPrefix(path, "/favicon") ||
			strings.HasPrefix(path, "/privacy") ||
			strings.HasPrefix(path, "/contact-form") {
			c.Next()
			return
		}

		// Respect Do Not Track header
		if c.GetHeader("DNT") == "1" || s.db == nil {
			c.Next()
			return
		}

		visit := store.Visit{
			HashedIP:  s.admin.hash(c.ClientIP()),
			UserAgent: c.GetHeader("User-Agent"),
			Path:      path,
			Timestamp: time.Now(),
		}
		// Track visitor with hashed IP in background
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.db.RecordVisit(ctx, visit); err != nil {
				zlog.Error().Err(err).Msg("Error recording visitor")
			}
		}()
		c.Next()
	}
}

// runRetention deletes old visitor and submission records once at start
// and then daily until ctx ends.
func runRetention(ctx context.Context, db *store.Store, retention time.Duration) {
	prune := func() {
		n, err := db.Prune(ctx, time.Now().Add(-retention))
		if err != nil {
			zlog.Error().Err(err).Msg("Error cleaning up old records")
			return
		}
		if n > 0 {
			zlog.Info().Int64("deleted", n).Msg("Privacy cleanup: removed expired records")
		}
	}

	prune()
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

// Setup all admin routes
func (s *site) setupAdminRoutes(r *gin.Engine) {
	// Privacy policy route
	r.GET("/privacy", func(c *gin.Context) {
		c.HTML(http.StatusOK, "privacy.html", gin.H{
			"title":     "Privacy Policy",
			"retention": s.cfg.Store.Retention,
			"profile":   s.currentProfile(),
		})
	})

	if !s.admin.enabled {
		return
	}

	// Admin login page
	r.GET("/admin/login", func(c *gin.Context) {
		c.HTML(http.StatusOK, "admin-login.html", gin.H{
			"title": "Admin Login",
		})
	})

	// Admin login handler
	r.POST("/admin/login", func(c *gin.Context) {
		username := c.PostForm("username")
		password := c.PostForm("password")

		if s.admin.checkCredentials(username, password) {
			// Set secure cookie (24 hours)
			c.SetCookie("admin_token", s.admin.token, 3600*24, "/admin", "", false, true)
			zlog.Info().Str("from", s.admin.hash(c.ClientIP())).Msg("Admin login successful")
			c.Redirect(http.StatusFound, "/admin/dashboard")
			return
		}

		zlog.Warn().Str("from", s.admin.hash(c.ClientIP())).Msg("Failed admin login attempt")
		c.HTML(http.StatusUnauthorized, "admin-login.html", gin.H{
			"title": "Admin Login",
			"error": "Invalid credentials",
		})
	})

	// Admin logout
	r.GET("/admin/logout", func(c *gin.Context) {
		c.SetCookie("admin_token", "", -1, "/admin", "", false, true)
		zlog.Info().Str("from", s.admin.hash(c.ClientIP())).Msg("Admin logout")
		c.Redirect(http.StatusFound, "/admin/login")
	})

	// Protected admin routes group
	adminGroup := r.Group("/admin")
	adminGroup.Use(s.admin.middleware())

	adminGroup.GET("/dashboard", func(c *gin.Context) {
		stats, err := s.db.Stats(c.Request.Context(), time.Now())
		if err != nil {
			zlog.Error().Err(err).Msg("Error loading admin stats")
			c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{
				"error": "Failed to load statistics",
			})
			return
		}

		c.HTML(http.StatusOK, "admin-dashboard.html", gin.H{
			"stats":     stats,
			"liveViews": s.views.Len(),
			"relay":     s.relayName,
		})
	})

	adminGroup.GET("/visitors", func(c *gin.Context) {
		visitors, err := s.db.RecentVisitors(c.Request.Context(), 200)
		if err != nil {
			c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{
				"error": "Failed to load visitors",
			})
			return
		}

		c.HTML(http.StatusOK, "admin-visitors.html", gin.H{
			"visitors": visitors,
		})
	})

	// Admin API endpoints for HTMX/AJAX
	adminGroup.GET("/api/stats", func(c *gin.Context) {
		stats, err := s.db.Stats(c.Request.Context(), time.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	adminGroup.GET("/api/visitors", func(c *gin.Context) {
		visitors, err := s.db.RecentVisitors(c.Request.Context(), 200)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load visitors"})
			return
		}
		c.JSON(http.StatusOK, visitors)
	})

	adminGroup.GET("/api/submissions", func(c *gin.Context) {
		subs, err := s.db.RecentSubmissions(c.Request.Context(), 200)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load submissions"})
			return
		}
		c.JSON(http.StatusOK, subs)
	})

	adminGroup.DELETE("/submissions/:id", func(c *gin.Context) {
		id := c.Param("id")

		err := s.db.DeleteSubmission(c.Request.Context(), id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Submission not found"})
			return
		case err != nil:
			zlog.Error().Err(err).Str("id", id).Msg("Error deleting submission")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete submission"})
			return
		}

		zlog.Info().Str("id", id).Str("by", s.admin.hash(c.ClientIP())).Msg("Submission deleted by admin")
		c.JSON(http.StatusOK, gin.H{"message": "Submission deleted successfully"})
	})

	// Privacy compliance endpoint
	adminGroup.POST("/privacy/cleanup", func(c *gin.Context) {
		n, err := s.db.Prune(c.Request.Context(), time.Now().Add(-s.cfg.Store.Retention))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Privacy cleanup failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Privacy cleanup complete", "deleted": n})
	})

	// Admin statistics export (for backups or analysis)
	adminGroup.GET("/export/stats", func(c *gin.Context) {
		stats, err := s.db.Stats(c.Request.Context(), time.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		// Set headers for file download
		c.Header("Content-Disposition", "attachment; filename=admin-stats.json")

		zlog.Info().Str("by", s.admin.hash(c.ClientIP())).Msg("Admin stats exported")
		c.JSON(http.StatusOK, stats)
	})
}
