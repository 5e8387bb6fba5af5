package tubeserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/anatolykoptev/go_tubeproxy/internal/engine"
	"github.com/anatolykoptev/go_tubeproxy/internal/toolutil"
)

// RouterConfig configures the HTTP surface around a Service.
type RouterConfig struct {
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter builds the gin engine serving /search, /channels, /suggest,
// /healthz and /metrics.
func NewRouter(svc *Service, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLog())

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		MaxAge:       12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/metrics", func(c *gin.Context) {
		c.String(http.StatusOK, engine.FormatMetrics())
	})

	h := &handler{svc: svc}
	api := r.Group("")
	api.Use(rateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	api.GET("/search", h.search)
	api.GET("/channels", h.channels)
	api.GET("/suggest", h.suggest)
	return r
}

type handler struct {
	svc *Service
}

func (h *handler) search(c *gin.Context) {
	resp := h.svc.Search(c.Request.Context(), signature(c), c.Query("q"), toolutil.ParsePage(c.Query("page")))
	write(c, resp)
}

func (h *handler) channels(c *gin.Context) {
	resp := h.svc.Channels(c.Request.Context(), signature(c), c.Query("q"), toolutil.ParsePage(c.Query("page")))
	write(c, resp)
}

func (h *handler) suggest(c *gin.Context) {
	write(c, h.svc.Suggest(c.Request.Context(), signature(c), c.Query("q")))
}

// signature is the exact inbound path and query.
func signature(c *gin.Context) string {
	return c.Request.URL.RequestURI()
}

func write(c *gin.Context, r Response) {
	c.Data(r.Status, "application/json; charset=utf-8", r.Body)
}

func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", time.Since(start)))
	}
}
