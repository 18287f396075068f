// Package server exposes the dispatcher over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/graderqueue/internal/apperr"
	"github.com/zulandar/graderqueue/internal/auth"
	"github.com/zulandar/graderqueue/internal/dispatch"
	"go.uber.org/zap"
)

// Handler executes one API request.
type Handler interface {
	Handle(ctx context.Context, raw auth.RawRequest) *dispatch.Response
}

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Handler        Handler
	Port           int
	MaxUploadBytes int64
	Logger         *zap.Logger
}

// Server serves the API and tracks the follow-up work of answered requests.
type Server struct {
	handler   Handler
	maxUpload int64
	log       *zap.Logger
	followUps sync.WaitGroup
}

// New returns a Server.
func New(opts StartOpts) (*Server, error) {
	if opts.Handler == nil {
		return nil, fmt.Errorf("server: handler is required")
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 8 << 20
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Server{handler: opts.Handler, maxUpload: opts.MaxUploadBytes, log: opts.Logger}, nil
}

// Router builds the gin engine serving the API.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(requestID(), accessLog(s.log), gin.CustomRecovery(s.recover))

	router.POST("/api", s.handleAPI)
	router.POST("/api.php", s.handleAPI)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

// Wait blocks until every follow-up started so far has finished.
func (s *Server) Wait() {
	s.followUps.Wait()
}

func (s *Server) handleAPI(c *gin.Context) {
	raw, err := s.readRequest(c)
	if err != nil {
		s.log.Debug("server: unreadable request", zap.String("request_id", c.GetString(requestIDKey)), zap.Error(err))
		c.JSON(http.StatusOK, dispatch.Envelope{ErrorCode: apperr.Code(err), ErrorMsg: apperr.Message(err)})
		return
	}

	resp := s.handler.Handle(c.Request.Context(), raw)
	c.JSON(http.StatusOK, resp.Envelope)
	c.Writer.Flush()

	if resp.FollowUp != nil {
		ctx := context.WithoutCancel(c.Request.Context())
		s.followUps.Add(1)
		go func() {
			defer s.followUps.Done()
			resp.FollowUp(ctx)
		}()
	}
}

func (s *Server) recover(c *gin.Context, v any) {
	s.log.Error("server: panic while handling request",
		zap.String("request_id", c.GetString(requestIDKey)),
		zap.Any("panic", v))
	c.AbortWithStatusJSON(http.StatusOK, dispatch.Envelope{
		ErrorCode: apperr.CodeFatal,
		ErrorMsg:  apperr.Message(nil),
	})
}

// Start launches the API server. It blocks until ctx is cancelled, then shuts
// down gracefully and waits for pending follow-ups.
func Start(ctx context.Context, opts StartOpts) error {
	s, err := New(opts)
	if err != nil {
		return err
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("server: listening", zap.Int("port", opts.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	s.Wait()
	return nil
}
