// Package web serves the token transfer pages and the JSON API.
package web

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"solana-token-transfer/internal/observability"
	"solana-token-transfer/internal/session"
	"solana-token-transfer/internal/storage"
)

//go:embed templates/*.html
var templateFS embed.FS

// Config holds handler settings.
type Config struct {
	CORSOrigins  []string
	ImageDomains []string // logo hosts allowed on pages; empty allows all
	RPCEndpoint  string
	CanSign      bool // a signer is configured; transfers are possible
	// AllowIdentityChange lets clients switch the viewed wallet. Only
	// meaningful in read-only mode.
	AllowIdentityChange bool
}

// Handler wires HTTP routes to a session.
type Handler struct {
	session *session.Session
	history storage.TransferStore
	cfg     Config
	images  imageAllowlist
	log     logrus.FieldLogger
	started time.Time
}

// NewHandler creates a Handler. history may be nil.
func NewHandler(sess *session.Session, history storage.TransferStore, cfg Config, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		session: sess,
		history: history,
		cfg:     cfg,
		images:  newImageAllowlist(cfg.ImageDomains),
		log:     log,
		started: time.Now(),
	}
}

// InitRoutes builds the gin engine.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(h.log))

	if c, ok := corsConfig(h.cfg.CORSOrigins); ok {
		router.Use(cors.New(c))
	}

	router.SetHTMLTemplate(template.Must(template.ParseFS(templateFS, "templates/*.html")))

	router.GET("/", h.Landing)
	pages := router.Group("/transfer")
	{
		pages.GET("", h.TransferPage)
		pages.POST("", h.SubmitTransfer)
		pages.POST("/select", h.SelectForm)
		pages.POST("/refresh", h.RefreshForm)
	}

	api := router.Group("/api")
	{
		api.GET("/holdings", h.GetHoldings)
		api.POST("/refresh", h.Refresh)
		api.POST("/select", h.Select)
		api.POST("/transfer", h.Transfer)
		api.GET("/transfers", h.GetTransfers)
		api.POST("/identity", h.SetIdentity)
	}

	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.GET("/status", h.Status)
	router.GET("/metrics", gin.WrapH(observability.Handler()))

	return router
}

func corsConfig(origins []string) (cors.Config, bool) {
	if len(origins) == 0 {
		return cors.Config{}, false
	}
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Length", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			c.AllowAllOrigins = true
			return c, true
		}
	}
	c.AllowOrigins = origins
	return c, true
}

func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("http request")
	}
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status      string `json:"status"`
	Uptime      string `json:"uptime"`
	RPCEndpoint string `json:"rpc_endpoint"`
	Identity    string `json:"identity"`
	CanSign     bool   `json:"can_sign"`
	Generation  uint64 `json:"generation"`
	Holdings    int    `json:"holdings"`
	Loaded      bool   `json:"loaded"`
}

// Status returns server status as JSON.
func (h *Handler) Status(c *gin.Context) {
	snap := h.session.Snapshot()
	c.JSON(http.StatusOK, StatusResponse{
		Status:      "running",
		Uptime:      time.Since(h.started).Round(time.Second).String(),
		RPCEndpoint: h.cfg.RPCEndpoint,
		Identity:    snap.Identity,
		CanSign:     h.cfg.CanSign,
		Generation:  snap.Generation,
		Holdings:    len(snap.Holdings),
		Loaded:      snap.Loaded,
	})
}
