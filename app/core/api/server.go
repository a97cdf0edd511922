// Package api exposes a small read-only HTTP surface over the bot's data,
// meant for local dashboards and health checks.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"focusbot/app/core/store"
)

// Store is the subset of storage the API reads from.
type Store interface {
	ActiveTasks(ctx context.Context) ([]store.Task, error)
	Ideas(ctx context.Context) ([]store.Idea, error)
	PendingReminders(ctx context.Context) ([]store.Reminder, error)
	ActiveRecurring(ctx context.Context) ([]store.Recurring, error)
}

// NewRouter builds the gin engine with all read-only routes registered.
func NewRouter(st Store) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	router.GET("/api/tasks", func(c *gin.Context) {
		tasks, err := st.ActiveTasks(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"tasks": tasks, "count": len(tasks)})
	})

	router.GET("/api/ideas", func(c *gin.Context) {
		ideas, err := st.Ideas(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ideas": ideas, "count": len(ideas)})
	})

	router.GET("/api/reminders", func(c *gin.Context) {
		pending, err := st.PendingReminders(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		recurring, err := st.ActiveRecurring(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"one_shot":  pending,
			"recurring": recurring,
		})
	})

	return router
}

// Server wraps the HTTP listener so main can shut it down with the rest of
// the process.
type Server struct {
	srv *http.Server
}

func NewServer(addr string, st Store) *Server {
	return &Server{
		srv: &http.Server{
			Addr:    addr,
			Handler: NewRouter(st),
		},
	}
}

// Start blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
