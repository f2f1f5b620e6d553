package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tasks/internal/logger"
	"tasks/internal/models"
)

// TaskStore is the persistence the HTTP layer depends on.
type TaskStore interface {
	ListTasks(ctx context.Context) ([]models.Task, error)
	CreateTask(ctx context.Context, content string) (models.Task, error)
	UpdateTask(ctx context.Context, id int64, done bool) (models.Task, error)
	DeleteTask(ctx context.Context, id int64) (models.Task, error)
	Ping(ctx context.Context) error
}

// Options configures optional server behavior.
type Options struct {
	StaticDir        string
	CORSAllowOrigins []string
}

// Server provides HTTP handlers for the task tracker backend.
type Server struct {
	engine    *gin.Engine
	store     TaskStore
	logger    *zap.Logger
	staticDir string
}

// New constructs the HTTP server with routes and middleware configured.
func New(store TaskStore, log *zap.Logger, opts Options) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(logger.RequestID())
	router.Use(logger.Recovery(log))
	router.Use(logger.GinMiddleware(log))
	router.Use(CORS(opts.CORSAllowOrigins))

	srv := &Server{
		engine:    router,
		store:     store,
		logger:    log,
		staticDir: opts.StaticDir,
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
	s.engine.GET("/healthz", s.handleHealth)

	tasks := s.engine.Group("/tasks")
	{
		tasks.GET("", s.handleListTasks)
		tasks.POST("", s.handleCreateTask)
		tasks.PATCH(":id", s.handleUpdateTask)
		tasks.DELETE(":id", s.handleDeleteTask)
	}

	s.mountStatic()
}

// handleHealth reports whether the store is reachable.
func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		logger.FromContext(c.Request.Context()).Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseID converts a path parameter to an int64. Ids that no task can have,
// such as 0, still parse and end up as a 404 from the store.
func parseID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "Validation failed (numeric string is expected)")
		return 0, false
	}
	return id, true
}

// respondError maps store and validation errors to a status code and a
// JSON payload. Unexpected errors are logged and hidden from the caller.
func (s *Server) respondError(c *gin.Context, err error) {
	var verr *models.ValidationError
	switch {
	case errors.Is(err, models.ErrNotFound):
		respondMessage(c, http.StatusNotFound, models.ErrNotFound.Message)
	case errors.As(err, &verr):
		respondMessage(c, http.StatusBadRequest, verr.Message)
	case errors.Is(err, models.ErrInvalidInput):
		respondMessage(c, http.StatusBadRequest, models.ErrInvalidInput.Message)
	default:
		_ = c.Error(err)
		logger.FromContext(c.Request.Context()).Error("request failed",
			zap.String("route", c.FullPath()),
			zap.Error(err))
		respondMessage(c, http.StatusInternalServerError, "Internal server error")
	}
}

// respondMessage writes the error envelope shared by every failure path.
func respondMessage(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"statusCode": status, "message": message})
}
