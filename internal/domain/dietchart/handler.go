package dietchart

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ayurdiet/ayurdiet/internal/platform/auth"
	"github.com/ayurdiet/ayurdiet/pkg/pagination"
)

type Handler struct {
	svc       *Service
	proposeMW []echo.MiddlewareFunc
}

// NewHandler builds the chart handler. proposeMW wraps only the propose
// route, which calls the upstream proposer.
func NewHandler(svc *Service, proposeMW ...echo.MiddlewareFunc) *Handler {
	return &Handler{svc: svc, proposeMW: proposeMW}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – admin, doctor, patient
	readGroup := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor, auth.RolePatient))
	readGroup.GET("/diet-charts", h.ListCharts)
	readGroup.GET("/diet-charts/:id", h.GetChart)
	readGroup.GET("/diet-charts/:id/summary", h.GetSummary)

	// Write endpoints – admin, doctor
	writeGroup := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor))
	writeGroup.POST("/diet-charts", h.CreateChart)
	writeGroup.POST("/diet-charts/propose", h.ProposeChart, h.proposeMW...)
	writeGroup.PUT("/diet-charts/:id", h.UpdateChart)
	writeGroup.PATCH("/diet-charts/:id/status", h.SetStatus)
	writeGroup.DELETE("/diet-charts/:id", h.DeleteChart)
}

// ListCharts lists by ?patient_id= or ?practitioner_id=. With neither, the
// caller's own charts are listed.
func (h *Handler) ListCharts(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)

	var (
		charts []*DietChart
		total  int
		err    error
	)
	switch {
	case c.QueryParam("patient_id") != "":
		pid, perr := uuid.Parse(c.QueryParam("patient_id"))
		if perr != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		charts, total, err = h.svc.ListByPatient(ctx, pid, pg.Limit, pg.Offset)
	case c.QueryParam("practitioner_id") != "":
		pid, perr := uuid.Parse(c.QueryParam("practitioner_id"))
		if perr != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid practitioner_id")
		}
		charts, total, err = h.svc.ListByPractitioner(ctx, pid, pg.Limit, pg.Offset)
	default:
		pid, perr := auth.PractitionerIDFromContext(ctx)
		if perr != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "patient_id or practitioner_id is required")
		}
		charts, total, err = h.svc.ListByPractitioner(ctx, pid, pg.Limit, pg.Offset)
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(charts, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetChart(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	chart, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, chart)
}

func (h *Handler) GetSummary(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	view, err := h.svc.Summary(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) CreateChart(c echo.Context) error {
	pid, err := practitioner(c)
	if err != nil {
		return err
	}
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	chart, err := h.svc.Create(c.Request().Context(), pid, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, chart)
}

func (h *Handler) ProposeChart(c echo.Context) error {
	var in ProposeInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.Propose(c.Request().Context(), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateChart(c echo.Context) error {
	pid, err := practitioner(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var patch Patch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	chart, err := h.svc.Update(c.Request().Context(), pid, id, patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, chart)
}

func (h *Handler) SetStatus(c echo.Context) error {
	pid, err := practitioner(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Status Status `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	chart, err := h.svc.SetStatus(c.Request().Context(), pid, id, body.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, chart)
}

// DeleteChart discontinues a chart; ?hard=true removes it.
func (h *Handler) DeleteChart(c echo.Context) error {
	pid, err := practitioner(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	hard := false
	if raw := c.QueryParam("hard"); raw != "" {
		if hard, err = strconv.ParseBool(raw); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid hard: "+raw)
		}
	}
	if err := h.svc.Delete(c.Request().Context(), pid, id, hard); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func practitioner(c echo.Context) (uuid.UUID, error) {
	pid, err := auth.PractitionerIDFromContext(c.Request().Context())
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "practitioner identity required")
	}
	return pid, nil
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrUnauthorized):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrUpstreamGeneration):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
