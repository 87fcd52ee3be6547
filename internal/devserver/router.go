package devserver

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// NewRouter wires the middleware chain and every route under cfg.Prefix.
func NewRouter(cfg Config, store *Store, log zerolog.Logger) *gin.Engine {
	return newRouter(cfg, store, log, time.Now)
}

func newRouter(cfg Config, store *Store, log zerolog.Logger, now func() time.Time) *gin.Engine {
	cfg = cfg.normalized()
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	auth := NewAuth(cfg.JWTSecret, time.Duration(cfg.TokenHours)*time.Hour)
	auth.now = now
	h := &handlers{store: store, auth: auth, log: log, now: now}

	r := gin.New()

	// Order matters: the request id must exist before anything logs.
	r.Use(RequestID())
	r.Use(Logger(log))
	r.Use(Recovery(log))
	r.Use(ErrorHandler(log))

	api := r.Group(cfg.Prefix)
	api.GET("/health", h.health)
	api.POST("/auth/login", h.login)

	protected := api.Group("")
	protected.Use(auth.Middleware())
	{
		protected.GET("/books", h.listBooks)
		protected.POST("/books", h.createBook)
		protected.PUT("/books/:id", h.updateBook)
		protected.DELETE("/books/:id", h.deleteBook)

		protected.GET("/copies", h.listCopies)
		protected.POST("/copies", h.createCopy)
		protected.DELETE("/copies/:id", h.deleteCopy)

		protected.GET("/members", h.listMembers)
		protected.POST("/members", h.createMember)
		protected.PUT("/members/:id", h.updateMember)
		protected.DELETE("/members/:id", h.deleteMember)

		protected.GET("/loans", h.listLoans)
		protected.POST("/loans", h.createLoan)
		protected.POST("/loans/return", h.returnLoan)

		protected.GET("/reports/dashboard", h.dashboard)
	}
	return r
}
