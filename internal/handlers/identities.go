package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/relaycore/chatrelay/internal/identity"
	"github.com/relaycore/chatrelay/internal/membership"
	"github.com/relaycore/chatrelay/internal/routing"
)

// IdentitiesHandler exposes name resolution, nickname management and the
// channel-mode toggles.
type IdentitiesHandler struct {
	registry *identity.Registry
	store    *membership.Store
	engine   *routing.Engine
}

// NewIdentitiesHandler creates the identities handler.
func NewIdentitiesHandler(registry *identity.Registry, store *membership.Store, engine *routing.Engine) *IdentitiesHandler {
	return &IdentitiesHandler{registry: registry, store: store, engine: engine}
}

// Register registers the identity routes.
func (h *IdentitiesHandler) Register(e *echo.Echo) {
	e.GET("/identities/:name", h.Resolve)
	e.PUT("/identities/:id/nickname", h.SetNickname)
	e.DELETE("/identities/:id/nickname", h.ClearNickname)
	e.POST("/identities/:id/mode", h.ToggleMode)
	e.PUT("/identities/:id/group", h.SetViewedGroup)
	e.POST("/identities/:id/spy", h.Spy)
}

// Resolve returns the current display name and identity for a username.
func (h *IdentitiesHandler) Resolve(c echo.Context) error {
	name := strings.TrimSpace(c.Param("name"))
	id, ok := h.registry.ResolveByUsername(name)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown username")
	}
	display, _ := h.registry.ResolveCurrentNameByUsername(name)
	return c.JSON(http.StatusOK, map[string]any{
		"identity": id.String(),
		"display":  display,
		"online":   h.registry.IsOnline(id),
	})
}

// SetNickname assigns a nickname; a conflicting claim yields 409.
func (h *IdentitiesHandler) SetNickname(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req struct {
		Nickname string `json:"nickname"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	switch err := h.registry.SetNickname(id, req.Nickname); {
	case errors.Is(err, identity.ErrNicknameTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, identity.ErrUnknownIdentity), errors.Is(err, identity.ErrInvalidNickname):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"display": h.registry.CurrentDisplayName(id)})
}

// ClearNickname removes an identity's nickname.
func (h *IdentitiesHandler) ClearNickname(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	h.registry.ClearNickname(id)
	return c.NoContent(http.StatusNoContent)
}

// ToggleMode toggles a channel mode for an identity. Body: {"mode": "mod" |
// "admin" | "group" | "pm", "target": "<uuid>"} (target for pm only).
func (h *IdentitiesHandler) ToggleMode(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req struct {
		Mode   string `json:"mode"`
		Target string `json:"target"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var active bool
	switch strings.ToLower(strings.TrimSpace(req.Mode)) {
	case "mod":
		active = h.engine.ToggleMod(id)
	case "admin":
		active = h.engine.ToggleAdmin(id)
	case "group":
		active = h.engine.ToggleGroup(id)
	case "pm":
		target, err := uuid.Parse(strings.TrimSpace(req.Target))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "target must be a uuid")
		}
		active = h.engine.TogglePrivate(id, target)
	case "reply":
		var ok bool
		active, ok = h.engine.ToggleReply(id)
		if !ok {
			return echo.NewHTTPError(http.StatusNotFound, "no reply target recorded")
		}
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown mode")
	}
	return c.JSON(http.StatusOK, map[string]any{"active": active})
}

// SetViewedGroup selects the group channel the identity writes to in group
// mode. Existence is checked lazily at send time.
func (h *IdentitiesHandler) SetViewedGroup(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req struct {
		Channel string `json:"channel"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.Channel) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "channel is required")
	}
	h.store.SetViewedGroup(id, strings.ToLower(strings.TrimSpace(req.Channel)))
	return c.NoContent(http.StatusNoContent)
}

// Spy subscribes or unsubscribes an identity from social-spy mirroring.
func (h *IdentitiesHandler) Spy(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req struct {
		Subscribed bool `json:"subscribed"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Subscribed {
		h.store.SubscribeSpy(id)
	} else {
		h.store.UnsubscribeSpy(id)
	}
	return c.JSON(http.StatusOK, map[string]any{"subscribed": req.Subscribed})
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "identity must be a uuid")
	}
	return id, nil
}
