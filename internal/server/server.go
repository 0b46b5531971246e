package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"taskboard/internal/models"
	"taskboard/internal/storage/flatfile"
)

// Server provides HTTP handlers for the task board backend.
type Server struct {
	engine    *gin.Engine
	store     *flatfile.Store
	logger    *slog.Logger
	staticDir string
}

// New constructs the HTTP server with routes and middleware configured.
func New(store *flatfile.Store, logger *slog.Logger, staticDir string) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/api/health"))
	router.Use(cors.Default())

	srv := &Server{
		engine:    router,
		store:     store,
		logger:    logger,
		staticDir: staticDir,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API and static handlers together.
func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.POST("/register", s.handleRegister)
		api.POST("/login", s.handleLogin)

		tasks := api.Group("/tasks")
		tasks.Use(s.identityRequired())
		{
			tasks.GET("", s.handleListTasks)
			tasks.POST("", s.handleCreateTask)
			tasks.GET(":id", s.handleGetTask)
			tasks.PATCH(":id", s.handleUpdateTask)
			tasks.DELETE(":id", s.handleDeleteTask)
		}
	}

	s.mountStatic()
}

// handleHealth reports service status and the backing file paths.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   models.NowISO(),
		"tasks":  s.store.TasksPath(),
		"users":  s.store.UsersPath(),
	})
}

// respondError logs the error and returns a JSON payload.
func (s *Server) respondError(c *gin.Context, status int, err error) {
	if err != nil {
		s.logger.Error("request failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// respondStoreError maps store sentinel errors onto HTTP status codes.
func (s *Server) respondStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, flatfile.ErrNotFound):
		s.respondError(c, http.StatusNotFound, err)
	case errors.Is(err, flatfile.ErrEmptyTitle):
		s.respondError(c, http.StatusBadRequest, err)
	case errors.Is(err, flatfile.ErrDuplicateUser):
		s.respondError(c, http.StatusConflict, err)
	default:
		s.respondError(c, http.StatusInternalServerError, err)
	}
}

// respondSuccess wraps a payload in a JSON envelope for consistency.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}
