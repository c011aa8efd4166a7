package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/relaydesk/relay/internal/biz/domain"
	"github.com/relaydesk/relay/internal/biz/repo"
	"github.com/relaydesk/relay/internal/biz/usecase"
)

// Server is the review surface HTTP API
type Server struct {
	approvals *usecase.ApprovalUsecase
	queue     repo.OutboundQueue
	logger    *zap.Logger
	addr      string

	server *http.Server
}

// EditRequest is the body of an edit call
type EditRequest struct {
	Message string `json:"message"`
}

// TranslateRequest is the body of a translation preview call
type TranslateRequest struct {
	Language string `json:"language"`
}

// StatusResponse reports pending work
type StatusResponse struct {
	PendingApprovals int                     `json:"pending_approvals"`
	QueueDepth       map[domain.Identity]int `json:"queue_depth"`
	DeadLetters      []DeadLetter            `json:"dead_letters"`
}

// DeadLetter is a failed outbound job as shown to reviewers
type DeadLetter struct {
	JobID    int64           `json:"job_id"`
	Sender   domain.Identity `json:"sender"`
	Category domain.Category `json:"category"`
	Target   string          `json:"target"`
	Message  string          `json:"message"`
	Reason   string          `json:"reason"`
	Attempts int             `json:"attempts"`
	FailedAt time.Time       `json:"failed_at"`
}

const deadLetterLimit = 10

// NewServer creates a new API server
func NewServer(approvals *usecase.ApprovalUsecase, queue repo.OutboundQueue, addr string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{approvals: approvals, queue: queue, addr: addr, logger: logger}
}

// Handler returns the routes of the review surface
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	approvals := r.Group("/api/approvals")
	approvals.GET("", s.listApprovals)
	approvals.GET("/:token", s.getApproval)
	approvals.POST("/:token/approve", s.approve)
	approvals.POST("/:token/edit", s.edit)
	approvals.POST("/:token/skip", s.skip)
	approvals.POST("/:token/translate", s.translate)

	r.GET("/api/status", s.status)
	return r
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("starting review API", zap.String("addr", s.addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (s *Server) listApprovals(c *gin.Context) {
	list, err := s.approvals.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	if list == nil {
		list = []*domain.PendingApproval{}
	}
	c.JSON(http.StatusOK, gin.H{"approvals": list, "count": len(list)})
}

func (s *Server) getApproval(c *gin.Context) {
	a, err := s.approvals.Get(c.Request.Context(), c.Param("token"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) approve(c *gin.Context) {
	jobID, err := s.approvals.Approve(c.Request.Context(), c.Param("token"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "job_id": jobID})
}

// edit and translate resolve the token before reading the body, so an
// unknown or consumed token is reported as not found whatever the body
func (s *Server) edit(c *gin.Context) {
	if _, err := s.approvals.Get(c.Request.Context(), c.Param("token")); err != nil {
		s.fail(c, err)
		return
	}
	var req EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "message is required"})
		return
	}
	jobID, err := s.approvals.Edit(c.Request.Context(), c.Param("token"), req.Message)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "job_id": jobID})
}

func (s *Server) skip(c *gin.Context) {
	if err := s.approvals.Skip(c.Request.Context(), c.Param("token")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) translate(c *gin.Context) {
	if _, err := s.approvals.Get(c.Request.Context(), c.Param("token")); err != nil {
		s.fail(c, err)
		return
	}
	var req TranslateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	lang, ok := domain.LookupLanguage(req.Language)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unsupported language"})
		return
	}
	res, err := s.approvals.Preview(c.Request.Context(), c.Param("token"), lang.Code)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"translated": res.Text,
		"language":   lang.Code,
		"failed":     res.Failed,
	})
}

func (s *Server) status(c *gin.Context) {
	ctx := c.Request.Context()
	pending, err := s.approvals.Count(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}

	resp := StatusResponse{
		PendingApprovals: pending,
		QueueDepth:       make(map[domain.Identity]int, len(domain.Identities)),
		DeadLetters:      []DeadLetter{},
	}
	for _, id := range domain.Identities {
		n, err := s.queue.Depth(ctx, id)
		if err != nil {
			s.fail(c, err)
			return
		}
		resp.QueueDepth[id] = n
	}

	dead, err := s.queue.DeadLetters(ctx, deadLetterLimit)
	if err != nil {
		s.fail(c, err)
		return
	}
	for _, d := range dead {
		resp.DeadLetters = append(resp.DeadLetters, DeadLetter{
			JobID:    d.JobID,
			Sender:   d.Job.Sender,
			Category: d.Job.Category,
			Target:   d.Job.Target(),
			Message:  d.Job.Text,
			Reason:   d.Reason,
			Attempts: d.Job.Attempts,
			FailedAt: d.FailedAt,
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "not found"})
	case errors.Is(err, domain.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "message is required"})
	default:
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
	}
}
