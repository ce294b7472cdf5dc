package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Humphrey-He/hquery/pkg/cache"
	"github.com/Humphrey-He/hquery/pkg/logger"
	"github.com/Humphrey-He/hquery/pkg/querykey"
)

// Inspector serves the state of a query cache and lets operators fire
// invalidations and lifecycle events.
//
// Inspector 提供查询缓存的状态，并允许运维人员触发失效和生命周期事件。
type Inspector struct {
	cache *cache.Client
	log   logger.Logger
}

// EntryView is the JSON form of one cache entry.
type EntryView struct {
	cache.Snapshot
	Error string `json:"error,omitempty"`
}

// InvalidateRequest is the body of POST /cache/invalidate.
// An empty Keys list matches every entry.
type InvalidateRequest struct {
	Keys []querykey.Key `json:"keys"`
	// Refetch defaults to true; false only marks matches stale.
	Refetch *bool `json:"refetch,omitempty"`
}

// NewInspector creates an inspector over c.
//
// NewInspector 创建c的检查器。
//
// Parameters:
//   - c: The query cache
//   - log: The logger; nil discards
//
// Returns:
//   - *Inspector: The inspector
func NewInspector(c *cache.Client, log logger.Logger) *Inspector {
	return &Inspector{cache: c, log: logger.OrNop(log)}
}

// Register mounts the inspector routes on r.
func (i *Inspector) Register(r gin.IRouter) {
	r.GET("/healthz", i.health)
	r.GET("/metrics", gin.WrapH(i.cache.Metrics().Handler()))
	r.GET("/metrics/snapshot", func(c *gin.Context) {
		c.JSON(http.StatusOK, i.cache.Metrics().GetSnapshot())
	})

	g := r.Group("/cache")
	g.GET("/entries", i.entries)
	g.GET("/entry", i.entry)
	g.POST("/invalidate", i.invalidate)
	g.POST("/refresh", func(c *gin.Context) {
		n := i.cache.RefreshAll()
		i.log.Info("refresh all via inspector", zap.Int("refetched", n))
		c.JSON(http.StatusOK, gin.H{"refetched": n})
	})
	g.DELETE("", func(c *gin.Context) {
		i.cache.Clear()
		i.log.Info("cache cleared via inspector")
		c.Status(http.StatusNoContent)
	})
	g.POST("/events/focus", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"refetched": i.cache.NotifyFocus()})
	})
	g.POST("/events/reconnect", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"refetched": i.cache.NotifyReconnect()})
	})
}

// NewServer returns a gin engine serving the inspector with request ids,
// logging and panic recovery.
//
// NewServer 返回提供检查接口的gin引擎，带请求ID、日志和panic恢复。
func NewServer(c *cache.Client, log logger.Logger, mode string) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger(log), CacheHeaders(c))
	NewInspector(c, log).Register(r)
	return r
}

func (i *Inspector) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "entries": i.cache.Len()})
}

func view(s cache.Snapshot, withData bool) EntryView {
	if !withData {
		s.Data = nil
	}
	return EntryView{Snapshot: s, Error: s.Error()}
}

// entries lists every entry, optionally under ?prefix=<key json>.
func (i *Inspector) entries(c *gin.Context) {
	prefix := querykey.Root
	if raw := c.Query("prefix"); raw != "" {
		k, err := querykey.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		prefix = k
	}
	withData, _ := strconv.ParseBool(c.DefaultQuery("data", "false"))

	out := []EntryView{}
	for _, s := range i.cache.Entries() {
		if querykey.HasPrefix(s.Key, prefix) {
			out = append(out, view(s, withData))
		}
	}
	c.JSON(http.StatusOK, out)
}

// entry returns one entry by ?key=<key json>, with its data.
func (i *Inspector) entry(c *gin.Context) {
	k, err := querykey.Parse(c.Query("key"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, ok := i.cache.Peek(k)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no entry for " + k.String()})
		return
	}
	c.JSON(http.StatusOK, view(s, true))
}

func (i *Inspector) invalidate(c *gin.Context) {
	var req InvalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	keys := req.Keys
	if len(keys) == 0 {
		keys = []querykey.Key{querykey.Root}
	}

	var n int
	if req.Refetch == nil || *req.Refetch {
		n = i.cache.Invalidate(keys...)
	} else {
		n = i.cache.MarkStale(keys...)
	}
	i.log.Info("invalidate via inspector", zap.Int("keys", len(keys)), zap.Int("matched", n))
	c.JSON(http.StatusOK, gin.H{"matched": n})
}
