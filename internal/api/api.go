package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/docchat/internal/assistant"
	"github.com/wuwenbin0122/docchat/internal/auth"
	"github.com/wuwenbin0122/docchat/internal/docs"
	"github.com/wuwenbin0122/docchat/internal/history"
	"github.com/wuwenbin0122/docchat/internal/models"
	"github.com/wuwenbin0122/docchat/internal/realtime"
)

var (
	errMissingChatID  = errors.New("chatId is required")
	errMissingMessage = errors.New("message is required")
)

// cacheInvalidator is implemented by document lookups that cache per chat.
type cacheInvalidator interface {
	Invalidate(ctx context.Context, chatID string) error
}

type Handler struct {
	authService *auth.Service
	history     history.Store
	docs        docs.Lookup
	replier     assistant.Replier
	hub         *realtime.Hub
	origins     *originPolicy
	upgrader    websocket.Upgrader
	logger      *zap.SugaredLogger

	newID func() string
	now   func() time.Time
}

type Options struct {
	Auth           *auth.Service
	History        history.Store
	Docs           docs.Lookup
	Replier        assistant.Replier
	Hub            *realtime.Hub
	AllowedOrigins []string
	Logger         *zap.SugaredLogger
}

func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	hub := opts.Hub
	if hub == nil {
		hub = realtime.NewHub(0)
	}
	replier := opts.Replier
	if replier == nil {
		replier = assistant.MockReplier{}
	}

	h := &Handler{
		authService: opts.Auth,
		history:     opts.History,
		docs:        opts.Docs,
		replier:     replier,
		hub:         hub,
		origins:     newOriginPolicy(opts.AllowedOrigins),
		logger:      logger,
		newID:       uuid.NewString,
		now:         func() time.Time { return time.Now().UTC() },
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4 * 1024,
		WriteBufferSize: 4 * 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || h.origins.allows(origin)
		},
	}
	return h
}

// NewRouter builds the engine with middleware, health check and API routes.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), corsMiddleware(h.origins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	h.RegisterRoutes(router)
	return router
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	apiGroup := router.Group("/api")
	apiGroup.POST("/session", h.handleSession)

	secured := apiGroup.Group("")
	secured.Use(sessionMiddleware(h.authService))
	secured.GET("/docs", h.handleListDocs)
	secured.POST("/chat", h.handleSendMessage)
	secured.GET("/chats", h.handleListChats)
	secured.GET("/chats/:id/messages", h.handleListMessages)
	secured.GET("/chats/:id/stream", h.handleStream)
	secured.DELETE("/chats/:id", h.handleDeleteChat)
}

type sessionRequest struct {
	UserID string `json:"userId"`
}

func (h *Handler) handleSession(c *gin.Context) {
	if h.authService == nil {
		writeError(c, http.StatusServiceUnavailable, "sessions are disabled", auth.ErrSecretRequired)
		return
	}

	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload", err)
		return
	}

	session, err := h.authService.IssueSession(c.Request.Context(), req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserIDRequired), errors.Is(err, auth.ErrUserIDTooLong):
			writeError(c, http.StatusBadRequest, err.Error(), err)
		default:
			writeError(c, http.StatusInternalServerError, "failed to issue session", err)
		}
		return
	}

	c.JSON(http.StatusCreated, session)
}

func (h *Handler) handleListDocs(c *gin.Context) {
	chatID := strings.TrimSpace(c.Query("chatId"))

	list, err := h.docs.ListDocuments(c.Request.Context(), chatID)
	if err != nil {
		h.logger.Warnw("list documents failed", "chat_id", chatID, "error", err)
		writeError(c, http.StatusInternalServerError, "failed to list documents", err)
		return
	}
	if list == nil {
		list = []models.Document{}
	}

	c.JSON(http.StatusOK, gin.H{"docs": list})
}

func (h *Handler) handleListChats(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		userID = sessionUserID(c)
	}

	chats, err := h.history.ListChats(c.Request.Context(), userID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "failed to list chats", err)
		return
	}
	if chats == nil {
		chats = []models.ChatSummary{}
	}

	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (h *Handler) handleListMessages(c *gin.Context) {
	chatID := c.Param("id")

	msgs, err := h.history.ListMessages(c.Request.Context(), chatID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			writeError(c, http.StatusNotFound, "chat not found", err)
			return
		}
		writeError(c, http.StatusInternalServerError, "failed to list messages", err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *Handler) handleSendMessage(c *gin.Context) {
	var req models.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload", err)
		return
	}

	chatID := strings.TrimSpace(req.ChatID)
	text := strings.TrimSpace(req.Message)
	if chatID == "" {
		writeError(c, http.StatusBadRequest, errMissingChatID.Error(), errMissingChatID)
		return
	}
	if text == "" {
		writeError(c, http.StatusBadRequest, errMissingMessage.Error(), errMissingMessage)
		return
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = sessionUserID(c)
	}
	userID = history.OwnerOf(userID)

	ctx := c.Request.Context()

	owner, err := h.history.Owner(ctx, chatID)
	switch {
	case err == nil && owner != userID:
		writeError(c, http.StatusConflict, "chat belongs to another user", models.ErrConflict)
		return
	case err != nil && !errors.Is(err, models.ErrNotFound):
		writeError(c, http.StatusInternalServerError, "failed to load chat", err)
		return
	}

	prior, err := h.history.ListMessages(ctx, chatID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		writeError(c, http.StatusInternalServerError, "failed to load history", err)
		return
	}

	userMsg := models.Message{
		ID:        h.newID(),
		ChatID:    chatID,
		Role:      models.RoleUser,
		Content:   text,
		Timestamp: h.now(),
	}

	replyText, err := h.replier.Reply(ctx, assistant.Request{
		ChatID:  chatID,
		UserID:  userID,
		History: prior,
		Message: text,
	})
	if err != nil {
		h.logger.Warnw("assistant reply failed", "chat_id", chatID, "error", err)
		writeError(c, http.StatusBadGateway, "assistant unavailable", err)
		return
	}

	replyMsg := models.Message{
		ID:        h.newID(),
		ChatID:    chatID,
		Role:      models.RoleAssistant,
		Content:   replyText,
		Timestamp: h.now(),
	}
	if !replyMsg.Timestamp.After(userMsg.Timestamp) {
		replyMsg.Timestamp = userMsg.Timestamp.Add(time.Millisecond)
	}

	if err := h.history.AppendExchange(ctx, chatID, userID, userMsg, replyMsg); err != nil {
		if errors.Is(err, models.ErrConflict) {
			writeError(c, http.StatusConflict, "chat belongs to another user", err)
			return
		}
		writeError(c, http.StatusInternalServerError, "failed to store messages", err)
		return
	}

	h.hub.Publish(chatID, realtime.MessageEvent(chatID, userMsg))
	h.hub.Publish(chatID, realtime.MessageEvent(chatID, replyMsg))

	c.JSON(http.StatusOK, models.SendReply{
		MessageID: replyMsg.ID,
		Response:  replyMsg.Content,
		Timestamp: replyMsg.Timestamp,
	})
}

func (h *Handler) handleDeleteChat(c *gin.Context) {
	chatID := c.Param("id")
	ctx := c.Request.Context()

	if err := h.history.DeleteChat(ctx, chatID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			writeError(c, http.StatusNotFound, "chat not found", err)
			return
		}
		writeError(c, http.StatusInternalServerError, "failed to delete chat", err)
		return
	}

	if inv, ok := h.docs.(cacheInvalidator); ok {
		if err := inv.Invalidate(ctx, chatID); err != nil {
			h.logger.Warnw("invalidate document cache failed", "chat_id", chatID, "error", err)
		}
	}
	h.hub.Publish(chatID, realtime.Event{Type: realtime.EventDeleted, ChatID: chatID})

	c.Status(http.StatusNoContent)
}

func writeError(c *gin.Context, status int, message string, err error) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}
