package chat

import (
	"context"
	"errors"
	"net/http"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/shopbot/internal/domain"
	"github.com/liliang-cn/shopbot/internal/repository"
	"github.com/liliang-cn/shopbot/internal/service"
	"go.uber.org/zap"
)

// Processor is the chat pipeline behind the HTTP boundary
type Processor interface {
	ProcessChatMessage(ctx context.Context, message, sessionID string) (*domain.ChatResponse, error)
	DeleteSession(sessionID string) bool
	GetSessionStats() domain.SessionStats
}

// Handler handles chat API requests
type Handler struct {
	processor        Processor
	maxRequestLength int
	logger           *zap.Logger
}

// NewHandler creates a new chat handler. Messages longer than
// maxRequestLength runes are rejected before they reach the pipeline.
func NewHandler(processor Processor, maxRequestLength int, logger *zap.Logger) *Handler {
	return &Handler{processor: processor, maxRequestLength: maxRequestLength, logger: logger.Named("api")}
}

// RegisterRoutes registers chat routes
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/chat", h.Chat)
	r.DELETE("/chat/:sessionId", h.DeleteSession)
	r.GET("/stats", h.Stats)
}

// Chat handles a chat message
func (h *Handler) Chat(c *gin.Context) {
	var req domain.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.maxRequestLength > 0 && utf8.RuneCountInString(req.Message) > h.maxRequestLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is too long"})
		return
	}

	resp, err := h.processor.ProcessChatMessage(c.Request.Context(), req.Message, req.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrInvalidSession) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Chat turn failed", zap.String("session_id", req.SessionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "response": service.FailureText})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// DeleteSession ends a conversation
func (h *Handler) DeleteSession(c *gin.Context) {
	sessionID := c.Param("sessionId")
	if !repository.ValidToken(sessionID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrInvalidSession.Error()})
		return
	}

	if !h.processor.DeleteSession(sessionID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "session deleted", "sessionId": sessionID})
}

// Stats returns live session summaries
func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.processor.GetSessionStats())
}
