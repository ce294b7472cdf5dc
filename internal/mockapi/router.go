package mockapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	hqhttp "github.com/Humphrey-He/hquery/api/http"
	"github.com/Humphrey-He/hquery/pkg/learning"
	"github.com/Humphrey-He/hquery/pkg/logger"
)

type handler struct {
	store *Store
}

// NewRouter serves store under /api.
//
// NewRouter 在/api下提供store的接口。
func NewRouter(store *Store, log logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), hqhttp.RequestID(), hqhttp.RequestLogger(log))

	h := &handler{store: store}
	api := r.Group("/api", h.gate)

	api.GET("/categories", func(c *gin.Context) { c.JSON(http.StatusOK, store.categoryList()) })
	api.GET("/categories/with-progress", func(c *gin.Context) { c.JSON(http.StatusOK, store.categoriesWithProgress()) })
	api.GET("/categories/:id", byID(store.category))
	api.GET("/categories/:id/stats", byID(store.categoryStats))
	api.POST("/categories", create(store.saveCategory))
	api.PUT("/categories/:id", update(store.saveCategory))
	api.DELETE("/categories/:id", remove(store.deleteCategory))

	api.GET("/questions", func(c *gin.Context) {
		var q Query
		if bindQuery(c, &q) {
			c.JSON(http.StatusOK, store.questionPage(q))
		}
	})
	api.GET("/questions/summary", func(c *gin.Context) {
		var q Query
		if bindQuery(c, &q) {
			c.JSON(http.StatusOK, store.summaryPage(q))
		}
	})
	api.GET("/questions/stats", func(c *gin.Context) { c.JSON(http.StatusOK, store.questionStats()) })
	api.GET("/questions/:id", byID(store.question))
	api.GET("/questions/:id/solutions", byID(func(id int64) ([]learning.Solution, bool) {
		if _, ok := store.question(id); !ok {
			return nil, false
		}
		return store.solutionList(id), true
	}))
	api.POST("/questions", create(store.saveQuestion))
	api.PUT("/questions/:id", update(store.saveQuestion))
	api.DELETE("/questions/:id", remove(store.deleteQuestion))

	api.GET("/progress/questions/:id", byID(store.questionProgress))
	api.PUT("/progress/questions/:id", func(c *gin.Context) {
		var in learning.ProgressInput
		if !bindJSON(c, &in) {
			return
		}
		if id, ok := paramID(c); !ok || id != in.QuestionID {
			c.JSON(http.StatusBadRequest, gin.H{"message": "question id mismatch"})
			return
		}
		reply[learning.QuestionProgress](c, http.StatusOK)(store.saveProgress(in))
	})
	api.GET("/progress/stats", func(c *gin.Context) { c.JSON(http.StatusOK, store.userStats()) })
	api.GET("/progress/recent", func(c *gin.Context) { c.JSON(http.StatusOK, store.recent()) })

	api.GET("/solutions", func(c *gin.Context) { c.JSON(http.StatusOK, store.solutionList(0)) })
	api.GET("/solutions/stats", func(c *gin.Context) { c.JSON(http.StatusOK, store.solutionStats()) })
	api.GET("/solutions/:id", byID(store.solution))
	api.POST("/solutions", create(store.saveSolution))
	api.PUT("/solutions/:id", update(store.saveSolution))
	api.DELETE("/solutions/:id", remove(store.deleteSolution))

	api.GET("/course/topics", func(c *gin.Context) { c.JSON(http.StatusOK, store.topicList()) })
	api.GET("/course/topics/:id", byID(store.topic))
	api.GET("/course/topics/:id/documents", byID(store.documentsByTopic))
	api.POST("/course/topics", create(store.saveTopic))
	api.PUT("/course/topics/:id", update(store.saveTopic))
	api.DELETE("/course/topics/:id", remove(store.deleteTopic))
	api.GET("/course/documents/:id", byID(store.document))
	api.POST("/course/documents", create(store.saveDocument))
	api.PUT("/course/documents/:id", update(store.saveDocument))
	api.DELETE("/course/documents/:id", remove(store.deleteDocument))
	api.GET("/course/stats", func(c *gin.Context) { c.JSON(http.StatusOK, store.courseStats()) })

	api.GET("/settings", func(c *gin.Context) { c.JSON(http.StatusOK, store.getSettings()) })
	api.PUT("/settings", func(c *gin.Context) {
		var in learning.Settings
		if bindJSON(c, &in) {
			c.JSON(http.StatusOK, store.putSettings(in))
		}
	})
	api.GET("/admin/stats", func(c *gin.Context) { c.JSON(http.StatusOK, store.adminStats()) })
	api.GET("/files/upload-config", func(c *gin.Context) {
		c.JSON(http.StatusOK, learning.UploadConfig{MaxSizeMB: 20, AllowedTypes: []string{"image/png", "application/pdf"}})
	})
	api.GET("/auth/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, learning.User{ID: 1, Username: "student", Role: "ADMIN"})
	})

	return r
}

// gate counts the hit, checks the token and applies injected faults.
func (h *handler) gate(c *gin.Context) {
	route := c.Request.Method + " " + c.FullPath()
	fault, authorized, latency := h.store.enter(route, c.GetHeader("Authorization"))
	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-c.Request.Context().Done():
			c.Abort()
			return
		}
	}
	if !authorized {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
		return
	}
	if fault != nil {
		if fault.RetryAfter != "" {
			c.Header("Retry-After", fault.RetryAfter)
		}
		c.AbortWithStatusJSON(fault.Status, gin.H{"message": http.StatusText(fault.Status)})
		return
	}
	c.Next()
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return false
	}
	return true
}

func bindQuery(c *gin.Context, v any) bool {
	if err := c.ShouldBindQuery(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return false
	}
	return true
}

func reply[T any](c *gin.Context, status int) func(T, bool) {
	return func(v T, ok bool) {
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"message": "not found"})
			return
		}
		c.JSON(status, v)
	}
}

func byID[T any](get func(int64) (T, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid id"})
			return
		}
		reply[T](c, http.StatusOK)(get(id))
	}
}

func create[In, Out any](save func(int64, In) (Out, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in In
		if bindJSON(c, &in) {
			reply[Out](c, http.StatusCreated)(save(0, in))
		}
	}
}

func update[In, Out any](save func(int64, In) (Out, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid id"})
			return
		}
		var in In
		if bindJSON(c, &in) {
			reply[Out](c, http.StatusOK)(save(id, in))
		}
	}
}

func remove(del func(int64) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid id"})
			return
		}
		if !del(id) {
			c.JSON(http.StatusNotFound, gin.H{"message": "not found"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}
