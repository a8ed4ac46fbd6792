package http

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiredm/internal/store"
)

// MessageHandlers serves stored conversations and unread counts.
type MessageHandlers struct {
	store store.MessageStore
	log   *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(st store.MessageStore, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		store: st,
		log:   logger,
	}
}

// MessageResponse is one stored envelope. Binary fields are standard base64,
// the same encoding the realtime events use.
type MessageResponse struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Content   string    `json:"content"`
	Key       string    `json:"key"`
	IV        string    `json:"iv"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// CountResponse is the body of the unread count endpoint.
type CountResponse struct {
	Count int `json:"count"`
}

// Conversation returns every envelope between the caller and recipientId,
// oldest first, and marks the caller's unread ones as read.
// GET /api/messages/:recipientId
func (h *MessageHandlers) Conversation(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	peer := c.Param("recipientId")
	if peer == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "recipient is required"})
		return
	}

	messages, err := h.store.FetchConversation(c.Request.Context(), uid, peer)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", uid).Str("peer", peer).Msg("failed to fetch conversation")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		response = append(response, MessageResponse{
			ID:        m.ID,
			Sender:    m.Sender,
			Recipient: m.Recipient,
			Content:   base64.StdEncoding.EncodeToString(m.CipherText),
			Key:       base64.StdEncoding.EncodeToString(m.WrappedKey),
			IV:        base64.StdEncoding.EncodeToString(m.IV),
			Timestamp: m.CreatedAt,
			Read:      m.Read,
		})
	}
	c.JSON(http.StatusOK, response)
}

// UnreadCount counts unread envelopes addressed to the caller, optionally
// only those from one sender.
// GET /api/messages/unread/count[?from=<id>]
func (h *MessageHandlers) UnreadCount(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	count, err := h.store.CountUnread(c.Request.Context(), uid, c.Query("from"))
	if err != nil {
		h.log.Error().Err(err).Str("user_id", uid).Msg("failed to count unread")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, CountResponse{Count: count})
}
