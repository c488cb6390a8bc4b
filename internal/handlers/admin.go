// Package handlers implements the relay's admin/ops HTTP API.
package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/relaycore/chatrelay/internal/identity"
	"github.com/relaycore/chatrelay/internal/routing"
)

// AdminHandler exposes the operational switches and the persistence trigger.
type AdminHandler struct {
	registry *identity.Registry
	opts     *routing.Options
}

// NewAdminHandler creates the admin handler.
func NewAdminHandler(registry *identity.Registry, opts *routing.Options) *AdminHandler {
	return &AdminHandler{registry: registry, opts: opts}
}

// Register registers the admin routes.
func (h *AdminHandler) Register(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.POST("/admin/persist", h.Persist)
	e.POST("/admin/freeze", h.Freeze)
	e.POST("/admin/global", h.Global)
}

// Health reports liveness.
func (h *AdminHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"status": "ok"})
}

// Persist writes the identity registry snapshot.
func (h *AdminHandler) Persist(c echo.Context) error {
	if err := h.registry.Persist(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"persisted": true})
}

// Freeze toggles the network chat freeze.
func (h *AdminHandler) Freeze(c echo.Context) error {
	var req struct {
		Frozen bool `json:"frozen"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	h.opts.SetFrozen(req.Frozen)
	return c.JSON(http.StatusOK, map[string]any{"frozen": req.Frozen})
}

// Global toggles the global chat fan-out.
func (h *AdminHandler) Global(c echo.Context) error {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	h.opts.SetGlobalEnabled(req.Enabled)
	return c.JSON(http.StatusOK, map[string]any{"enabled": req.Enabled})
}
