package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"smbsyncd/internal/logger"
	"smbsyncd/internal/model"
	"smbsyncd/internal/registry"
	"smbsyncd/internal/scheduler"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const defaultCancelWait = 3 * time.Second

// Server is the loopback HTTP control surface: a thin translator from the
// handlers to registry, supervisor and scheduler operations.
type Server struct {
	echo       *echo.Echo
	reg        *registry.Registry
	launcher   scheduler.Launcher
	port       int
	cancelWait time.Duration
}

func NewServer(reg *registry.Registry, launcher scheduler.Launcher, port int) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:       e,
		reg:        reg,
		launcher:   launcher,
		port:       port,
		cancelWait: defaultCancelWait,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/ping", s.handlePing)

	g := s.echo.Group("/jobs")
	g.GET("/", s.handleListJobs)
	g.GET("/:id", s.handleGetJob)
	g.DELETE("/:id", s.handleCancelJob)
	g.POST("/start", s.handleManualStart)
	g.POST("/:id/start", s.handleStartJob)
}

func (s *Server) Start() {
	go func() {
		addr := fmt.Sprintf("127.0.0.1:%d", s.port)
		logger.Log.Info("control surface started",
			zap.String("addr", addr))

		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("control surface error", zap.Error(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handlePing(c echo.Context) error {
	return c.String(http.StatusOK, "Pong!")
}

func (s *Server) handleListJobs(c echo.Context) error {
	return c.JSON(http.StatusOK, s.reg.Summaries())
}

func (s *Server) handleGetJob(c echo.Context) error {
	id, err := parseJobID(c.Param("id"))
	if err != nil {
		return httpError(c, err)
	}

	summary, err := s.getSummary(id)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) handleCancelJob(c echo.Context) error {
	id, err := parseJobID(c.Param("id"))
	if err != nil {
		return httpError(c, err)
	}

	if err := s.cancel(id); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleStartJob(c echo.Context) error {
	id, err := parseJobID(c.Param("id"))
	if err != nil {
		return httpError(c, err)
	}

	if err := s.launcher.Launch(id); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleManualStart(c echo.Context) error {
	var req scheduler.StartRequest
	if err := c.Bind(&req); err != nil || req.Server == "" || req.Schedule == "" {
		return httpError(c, model.BadRequest("server and schedule required"))
	}

	if err := scheduler.RequestStart(req); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) getSummary(jobID string) (model.JobSummary, error) {
	var summary model.JobSummary
	err := s.reg.WithJobs(func(jobs map[string]*registry.LiveJob) error {
		j, ok := jobs[jobID]
		if !ok {
			return model.BadRequest("unknown job %q", jobID)
		}
		summary = j.Record.Summary(j.Status())
		return nil
	})
	return summary, err
}

// cancel sends the single-shot cancel request and waits a bounded time for
// an acknowledgment carrying true. A timeout does not imply the job stopped.
func (s *Server) cancel(jobID string) error {
	var (
		req chan<- struct{}
		ack <-chan bool
	)
	if err := s.reg.WithJobs(func(jobs map[string]*registry.LiveJob) error {
		j, ok := jobs[jobID]
		if !ok {
			return model.BadRequest("unknown job %q", jobID)
		}
		if j.Worker == nil {
			return model.BadRequest("job %q is not running", jobID)
		}
		req = j.CancelReq
		ack = j.CancelAck
		return nil
	}); err != nil {
		return err
	}

	select {
	case req <- struct{}{}:
	default:
		// A request is already pending; wait on the same ack.
	}

	timer := time.NewTimer(s.cancelWait)
	defer timer.Stop()

	select {
	case ok := <-ack:
		if !ok {
			return model.Timeout("Timeout exceeded or failed to cancel!")
		}
		return nil
	case <-timer.C:
		return model.Timeout("Timeout exceeded or failed to cancel!")
	}
}

func parseJobID(raw string) (string, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", model.BadRequest("invalid job id %q", raw)
	}
	return id.String(), nil
}

func httpError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch model.KindOf(err) {
	case model.KindBadRequest:
		status = http.StatusBadRequest
	case model.KindTimeout:
		status = http.StatusRequestTimeout
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}
