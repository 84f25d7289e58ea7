// Package api exposes the gateway over HTTP with gin.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/kilianp07/vendpoint/core/dispatch"
	"github.com/kilianp07/vendpoint/core/ledger"
	"github.com/kilianp07/vendpoint/core/logger"
	"github.com/kilianp07/vendpoint/core/model"
	"github.com/kilianp07/vendpoint/core/ratelimit"
	"github.com/kilianp07/vendpoint/core/requestlog"
)

// Runner executes one dispatch run.
type Runner interface {
	Run(ctx context.Context, req dispatch.Request) (dispatch.Outcome, error)
}

// Directory is the part of the responder directory the API needs.
type Directory interface {
	Synced() bool
	Resolve(uids []int) []model.Candidate
}

// Deps wires the handlers to the gateway services.
type Deps struct {
	Engine    Runner
	Directory Directory
	Auth      *ledger.Authenticator
	Keys      ledger.KeyStore
	Ledger    ledger.Ledger
	// Limiter may be nil to disable rate limiting.
	Limiter      ratelimit.Limiter
	GlobalLimits []ratelimit.Rule
	Recorder     *requestlog.Recorder
	Logs         requestlog.Store
	Dispatch     dispatch.Config
	// AdminSecret signs admin tokens.
	AdminSecret string
	// Users and UserSecret enable user tokens, /conversation and the
	// self-service /keys routes. Admin routes are mounted when either
	// secret is set.
	Users      ledger.UserStore
	UserSecret string
	// CORSOrigins lists the allowed origins; "*" allows any.
	CORSOrigins []string
	Log         logger.Logger
}

var validate = validator.New()

type server struct {
	Deps
}

// NewRouter builds the gin engine serving every route.
func NewRouter(d Deps) *gin.Engine {
	s := &server{Deps: d}
	r := gin.New()
	r.Use(recovery(d.Log), accessLog(d.Log), corsPolicy(d.CORSOrigins))

	r.GET("/healthz", s.health)
	r.POST("/chat", requireAPIKey(d.Auth), rateLimit(d.Limiter, d.GlobalLimits, d.Log), s.chat)

	users := d.UserSecret != "" && d.Users != nil
	if users {
		r.POST("/conversation", requireUser(d.UserSecret, d.Users), s.conversation)
		own := r.Group("/keys", requireUser(d.UserSecret, d.Users))
		own.GET("", s.listOwnKeys)
		own.POST("", s.createOwnKey)
		own.PATCH("/:query", s.updateOwnKey)
		own.DELETE("/:query", s.deleteOwnKey)
	}

	if d.AdminSecret != "" || users {
		admin := r.Group("/admin", requireAdmin(d.AdminSecret, d.UserSecret, d.Users))
		admin.GET("/keys", s.listKeys)
		admin.POST("/keys", s.createKey)
		admin.GET("/keys/:query", s.getKey)
		admin.PATCH("/keys/:query", s.updateKey)
		admin.DELETE("/keys/:query", s.deleteKey)
		admin.GET("/logs", s.queryLogs)
		admin.GET("/stats", s.stats)
		if d.Users != nil {
			admin.GET("/users", s.listUsers)
			admin.PATCH("/users/:id", s.updateUser)
		}
	}
	return r
}

func (s *server) health(c *gin.Context) {
	synced := s.Directory != nil && s.Directory.Synced()
	status, code := "ok", http.StatusOK
	if !synced {
		status, code = "syncing", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "directory_synced": synced})
}
