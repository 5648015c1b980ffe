package handlers

import (
	"errors"
	"net/http"

	"rover-bridge/command"
	"rover-bridge/services"
	"rover-bridge/state"
	"rover-bridge/utils"

	"github.com/labstack/echo/v4"
)

// ControlHandler serves the control API.
type ControlHandler struct {
	controlService *services.ControlService
}

func NewControlHandler(controlService *services.ControlService) *ControlHandler {
	return &ControlHandler{controlService: controlService}
}

// Register mounts the control routes on e.
func (h *ControlHandler) Register(e *echo.Echo) {
	e.GET("/", h.Root)
	e.POST("/control/set", h.Set)
	e.GET("/control/status", h.Status)
	e.POST("/control/stop", h.Stop)
	e.GET("/control/history", h.History)
}

// Root describes this instance.
func (h *ControlHandler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, h.controlService.Info())
}

// Set applies a control intent.
func (h *ControlHandler) Set(c echo.Context) error {
	var in command.Intent
	if err := c.Bind(&in); err != nil {
		return utils.NewBadRequestError("Invalid request body", err)
	}

	res, err := h.controlService.Set(c.Request().Context(), in)
	return h.respond(c, res, err)
}

// Stop forces the stop command.
func (h *ControlHandler) Stop(c echo.Context) error {
	res, err := h.controlService.Stop(c.Request().Context())
	return h.respond(c, res, err)
}

// Status returns the local snapshot or, when relaying, the aggregate view.
func (h *ControlHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, h.controlService.Status(c.Request().Context()))
}

// History lists recently accepted commands.
func (h *ControlHandler) History(c echo.Context) error {
	limit := utils.GetLimit(c.QueryParam("limit"), 50, 500)
	records, total, err := h.controlService.History(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, utils.CreateListResponse(records, len(records), limit, total))
}

// persistFailure is returned when the state moved but was not written out.
type persistFailure struct {
	Message string         `json:"message"`
	State   state.Snapshot `json:"state"`
	Error   string         `json:"error"`
}

func (h *ControlHandler) respond(c echo.Context, res *services.Result, err error) error {
	if err == nil {
		return c.JSON(http.StatusOK, res)
	}

	var verr *command.ValidationError
	if errors.As(err, &verr) {
		return utils.NewUnprocessableError(verr.Error(), err)
	}
	var perr *state.PersistenceError
	if errors.As(err, &perr) && res != nil {
		return c.JSON(http.StatusInternalServerError, persistFailure{
			Message: "State updated but could not be saved",
			State:   res.State,
			Error:   perr.Error(),
		})
	}
	return utils.NewInternalServerError("Failed to apply command", err)
}
