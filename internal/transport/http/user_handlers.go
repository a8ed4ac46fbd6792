package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiredm/internal/presence"
	"github.com/vovakirdan/wiredm/internal/store"
)

// UserHandlers provides HTTP handlers for directory lookups and the
// explicit status flag.
type UserHandlers struct {
	store    store.UserStore
	presence *presence.Registry
	log      *zerolog.Logger
	now      func() time.Time
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(st store.UserStore, reg *presence.Registry, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		store:    st,
		presence: reg,
		log:      logger,
		now:      time.Now,
	}
}

// UserResponse represents a user in API responses. Online and LastSeen are
// the persisted status flag; Presence is the live connection state. The two
// are independent and both are reported.
type UserResponse struct {
	ID        string            `json:"id"`
	Username  string            `json:"username"`
	PublicKey string            `json:"publicKey"`
	Online    bool              `json:"online"`
	LastSeen  *time.Time        `json:"lastSeen,omitempty"`
	Presence  *PresenceResponse `json:"presence,omitempty"`
}

// PresenceResponse is the realtime presence of a user.
type PresenceResponse struct {
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

// UpdateStatusRequest is the body of PATCH /api/users/status.
type UpdateStatusRequest struct {
	Online *bool `json:"online" binding:"required"`
}

func userResponse(u *store.User, st *presence.Status) UserResponse {
	resp := UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		PublicKey: u.PublicKey,
		Online:    u.Online,
		LastSeen:  u.LastSeen,
	}
	if st != nil {
		p := &PresenceResponse{Online: st.Online}
		if !st.LastSeen.IsZero() {
			t := st.LastSeen
			p.LastSeen = &t
		}
		resp.Presence = p
	}
	return resp
}

func (h *UserHandlers) withPresence(c *gin.Context, u *store.User) UserResponse {
	if h.presence == nil {
		return userResponse(u, nil)
	}
	st := h.presence.Status(c.Request.Context(), u.ID)
	return userResponse(u, &st)
}

// ListUsers lists every other user, sorted by username.
// GET /api/users
func (h *UserHandlers) ListUsers(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	users, err := h.store.ListUsers(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list users")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]UserResponse, 0, len(users))
	for _, u := range users {
		response = append(response, h.withPresence(c, u))
	}
	c.JSON(http.StatusOK, response)
}

// GetUser returns one user.
// GET /api/users/:id
func (h *UserHandlers) GetUser(c *gin.Context) {
	user, err := h.store.GetUserByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
			return
		}
		h.log.Error().Err(err).Str("user_id", c.Param("id")).Msg("failed to get user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, h.withPresence(c, user))
}

// UpdateStatus sets the caller's persisted online flag and last seen time.
// It does not touch realtime presence.
// PATCH /api/users/status
func (h *UserHandlers) UpdateStatus(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	if err := h.store.UpdateUserStatus(ctx, uid, *req.Online, h.now().UTC()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
			return
		}
		h.log.Error().Err(err).Str("user_id", uid).Msg("failed to update status")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	user, err := h.store.GetUserByID(ctx, uid)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", uid).Msg("failed to reload user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, h.withPresence(c, user))
}
