package http

import (
	"errors"
	"net/http"
	"time"

	"matrix-quest-service/internal/app"
	"matrix-quest-service/internal/auth"
	"matrix-quest-service/internal/domain"
	"matrix-quest-service/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Deps are the collaborators the HTTP layer needs. Metrics and Webhook are optional.
type Deps struct {
	Service        *app.TriviaService
	Leaderboard    *app.Leaderboard
	Tokens         *auth.TokenIssuer
	Webhook        app.Notifier
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
	RequestTimeout time.Duration
	AllowedOrigins []string
}

type Handler struct {
	service        *app.TriviaService
	leaderboard    *app.Leaderboard
	tokens         *auth.TokenIssuer
	webhook        app.Notifier
	metrics        *metrics.Metrics
	logger         *zap.Logger
	requestTimeout time.Duration
	upgrader       websocket.Upgrader
}

func NewHandler(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service:        deps.Service,
		leaderboard:    deps.Leaderboard,
		tokens:         deps.Tokens,
		webhook:        deps.Webhook,
		metrics:        deps.Metrics,
		logger:         logger,
		requestTimeout: deps.RequestTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(deps.AllowedOrigins),
		},
	}
}

// Router builds the gin engine with every route mounted.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.logger))
	if h.metrics != nil {
		r.Use(h.metrics.Middleware())
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/ws/leaderboard", h.serveLeaderboardWS)

	api := r.Group("/api", requestTimeout(h.requestTimeout))
	api.POST("/login", h.login)
	api.GET("/leaderboard", h.getLeaderboard)
	api.Any("/send-webhook", h.sendWebhook)

	authed := api.Group("", h.requireSession())
	authed.POST("/logout", h.logout)
	authed.GET("/question", h.getQuestion)
	authed.POST("/answer", h.submitAnswer)
	authed.GET("/progress", h.getProgress)
	return r
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token           string    `json:"token"`
	Username        string    `json:"username"`
	ExpiresAt       time.Time `json:"expiresAt"`
	CurrentQuestion int       `json:"currentQuestion"`
	TotalQuestions  int       `json:"totalQuestions"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	session, err := h.service.Login(c.Request.Context(), req.Username, req.Password)
	if h.metrics != nil {
		h.metrics.ObserveLogin(err)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	token, session, err := h.tokens.Issue(session)
	if err != nil {
		h.writeError(c, err)
		return
	}
	record, err := h.service.Progress(c.Request.Context(), session.UserKey)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Token:           token,
		Username:        session.Username,
		ExpiresAt:       session.ExpiresAt,
		CurrentQuestion: record.CurrentQuestion,
		TotalQuestions:  h.service.TotalQuestions(),
	})
}

func (h *Handler) logout(c *gin.Context) {
	session := sessionFrom(c)
	if err := h.service.Logout(c.Request.Context(), session.UserKey); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type questionResponse struct {
	ID             int    `json:"id,omitempty"`
	Text           string `json:"text,omitempty"`
	Number         int    `json:"number"`
	TotalQuestions int    `json:"totalQuestions"`
	Attempts       int    `json:"attempts"`
	HintVisible    bool   `json:"hintVisible"`
	Hint           string `json:"hint,omitempty"`
	Completed      bool   `json:"completed"`
}

func (h *Handler) getQuestion(c *gin.Context) {
	record, ok := h.activeRecord(c)
	if !ok {
		return
	}

	q, found, err := h.service.GetCurrentQuestion(c.Request.Context(), record.UserKey)
	if err != nil {
		h.writeError(c, err)
		return
	}
	total := h.service.TotalQuestions()
	if !found {
		c.JSON(http.StatusOK, questionResponse{Number: total, TotalQuestions: total, Completed: true})
		return
	}

	attempts := record.AttemptsFor(q.ID)
	hint, visible := q.HintFor(attempts)
	c.JSON(http.StatusOK, questionResponse{
		ID:             q.ID,
		Text:           q.Text,
		Number:         q.ID,
		TotalQuestions: total,
		Attempts:       attempts,
		HintVisible:    visible,
		Hint:           hint,
	})
}

type answerRequest struct {
	Answer string `json:"answer"`
}

func (h *Handler) submitAnswer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid answer payload"})
		return
	}
	record, ok := h.activeRecord(c)
	if !ok {
		return
	}

	res, err := h.service.SubmitAnswer(c.Request.Context(), record.UserKey, req.Answer)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if h.metrics != nil && res.QuestionID != 0 {
		h.metrics.ObserveAnswer(res.Correct)
	}
	c.JSON(http.StatusOK, res)
}

type progressResponse struct {
	Username        string     `json:"username"`
	CurrentQuestion int        `json:"currentQuestion"`
	TotalQuestions  int        `json:"totalQuestions"`
	Attempts        int        `json:"attempts"`
	Completed       bool       `json:"completed"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	ProgressPercent int        `json:"progressPercent"`
}

func (h *Handler) getProgress(c *gin.Context) {
	session := sessionFrom(c)
	record, err := h.service.Progress(c.Request.Context(), session.UserKey)
	if err != nil {
		h.writeError(c, err)
		return
	}
	total := h.service.TotalQuestions()
	c.JSON(http.StatusOK, progressResponse{
		Username:        record.Username,
		CurrentQuestion: record.CurrentQuestion,
		TotalQuestions:  total,
		Attempts:        record.AttemptsFor(record.CurrentQuestion),
		Completed:       record.CurrentQuestion > total,
		CompletedAt:     record.CompletedAt,
		ProgressPercent: app.ProgressPercent(record.CurrentQuestion, total),
	})
}

func (h *Handler) getLeaderboard(c *gin.Context) {
	lb, err := h.leaderboard.ListRanked(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, lb)
}

// activeRecord loads the caller's record and rejects logged-out sessions.
func (h *Handler) activeRecord(c *gin.Context) (domain.ProgressRecord, bool) {
	session := sessionFrom(c)
	record, err := h.service.Progress(c.Request.Context(), session.UserKey)
	if errors.Is(err, domain.ErrProgressNotFound) || (err == nil && !record.LoggedIn) {
		h.writeError(c, domain.ErrNotLoggedIn)
		return domain.ProgressRecord{}, false
	}
	if err != nil {
		h.writeError(c, err)
		return domain.ProgressRecord{}, false
	}
	return record, true
}

// writeError maps domain errors to the public taxonomy. Details never leak to clients.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "access denied"})
	case errors.Is(err, domain.ErrNotLoggedIn), errors.Is(err, domain.ErrProgressNotFound), errors.Is(err, auth.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not logged in"})
	default:
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporary failure, please retry"})
	}
}
