package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/relaycore/chatrelay/internal/directory"
)

// ChannelsHandler manages the group channel directory.
type ChannelsHandler struct {
	directory *directory.Directory
}

// NewChannelsHandler creates the channels handler.
func NewChannelsHandler(dir *directory.Directory) *ChannelsHandler {
	return &ChannelsHandler{directory: dir}
}

// Register registers the channel routes.
func (h *ChannelsHandler) Register(e *echo.Echo) {
	e.GET("/channels", h.List)
	e.POST("/channels", h.Create)
	e.DELETE("/channels/:name", h.Delete)
	e.PUT("/channels/:name/formal", h.SetFormal)
	e.POST("/channels/:name/members/:id", h.Join)
	e.DELETE("/channels/:name/members/:id", h.Leave)
	e.POST("/channels/:name/admins/:id", h.Promote)
}

// List returns all group channel names.
func (h *ChannelsHandler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"items": h.directory.List()})
}

// Create registers a group channel.
func (h *ChannelsHandler) Create(c echo.Context) error {
	var req struct {
		Name   string `json:"name"`
		Formal bool   `json:"formal"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.Name) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	if err := h.directory.Create(req.Name, req.Formal); err != nil {
		if errors.Is(err, directory.ErrChannelExists) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]any{"name": req.Name, "formal": req.Formal})
}

// Delete removes a group channel.
func (h *ChannelsHandler) Delete(c echo.Context) error {
	if err := h.directory.Delete(c.Param("name")); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// SetFormal updates a channel's formal flag.
func (h *ChannelsHandler) SetFormal(c echo.Context) error {
	var req struct {
		Formal bool `json:"formal"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := h.directory.SetFormal(c.Param("name"), req.Formal); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"formal": req.Formal})
}

// Join adds an identity to a channel.
func (h *ChannelsHandler) Join(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.directory.Join(c.Param("name"), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// Leave removes an identity from a channel.
func (h *ChannelsHandler) Leave(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.directory.Leave(c.Param("name"), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// Promote adds an identity to a channel's admin list.
func (h *ChannelsHandler) Promote(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.directory.Promote(c.Param("name"), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
