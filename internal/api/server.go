package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"family-tasks/internal/export"
	"family-tasks/internal/service"
)

// Server is the JSON HTTP API over the task store.
type Server struct {
	tasks    *service.TaskService
	family   *service.FamilyService
	digests  *service.DigestService
	exporter *export.Exporter
	router   *gin.Engine
	now      func() time.Time
}

// NewServer creates the API and registers its routes.
func NewServer(tasks *service.TaskService, family *service.FamilyService, digests *service.DigestService, exporter *export.Exporter) *Server {
	router := gin.Default()

	s := &Server{
		tasks:    tasks,
		family:   family,
		digests:  digests,
		exporter: exporter,
		router:   router,
		now:      time.Now,
	}

	router.GET("/health", s.handleHealth)

	api := router.Group("/api")
	{
		api.GET("/tasks", s.handleListTasks)
		api.POST("/tasks", s.handleCreateTask)
		api.GET("/tasks/:id", s.handleGetTask)
		api.PATCH("/tasks/:id", s.handleUpdateTask)
		api.DELETE("/tasks/:id", s.handleDeleteTask)
		api.POST("/tasks/:id/toggle", s.handleToggleTask)
		api.POST("/undo", s.handleUndo)
		api.GET("/stats", s.handleStats)

		api.GET("/family", s.handleFamily)
		api.POST("/family", s.handleAddMember)
		api.DELETE("/family/:name", s.handleRemoveMember)

		api.GET("/report", s.handleReport)
		api.GET("/export", s.handleExport)
		api.GET("/events", s.handleEvents)
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener. Request contexts derive from ctx, so
// open event streams end when ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[info] http api listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Println("[info] http api stopped")
	return nil
}
