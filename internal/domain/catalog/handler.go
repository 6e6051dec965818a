package catalog

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ayurdiet/ayurdiet/internal/platform/auth"
	"github.com/ayurdiet/ayurdiet/pkg/pagination"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// maxImportSize bounds an uploaded workbook.
const maxImportSize = 10 << 20

type Handler struct {
	svc    *Service
	readMW []echo.MiddlewareFunc
}

// NewHandler builds the catalog handler. readMW wraps the read routes only.
func NewHandler(svc *Service, readMW ...echo.MiddlewareFunc) *Handler {
	return &Handler{svc: svc, readMW: readMW}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – admin, doctor, patient
	readMW := append([]echo.MiddlewareFunc{auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor, auth.RolePatient)}, h.readMW...)
	readGroup := api.Group("", readMW...)
	readGroup.GET("/foods", h.ListFoods)
	readGroup.GET("/foods/facets", h.Facets)
	readGroup.GET("/foods/:id", h.GetFood)

	// Write endpoints – admin
	writeGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	writeGroup.POST("/foods", h.CreateFood)
	writeGroup.PUT("/foods/:id", h.UpdateFood)
	writeGroup.POST("/foods/import", h.ImportFoods)
	writeGroup.GET("/foods/export", h.ExportFoods)
}

// CriteriaFromContext reads a catalog query from the request's query string.
// List parameters may be repeated or comma-separated.
func CriteriaFromContext(c echo.Context, defaultSize int) (Criteria, error) {
	q := c.QueryParams()
	crit := Criteria{
		Search: strings.TrimSpace(q.Get("search")),
		Taste:  strings.TrimSpace(q.Get("taste")),
		SortBy: SortKey(strings.ToLower(strings.TrimSpace(q.Get("sort_by")))),
	}
	if crit.Search == "" {
		crit.Search = strings.TrimSpace(q.Get("q"))
	}
	crit.Categories = multiValue(q["category"])

	for _, raw := range multiValue(q["dosha"]) {
		d, ok := ParseDoshaFilter(raw)
		if !ok {
			return Criteria{}, echo.NewHTTPError(http.StatusBadRequest, "invalid dosha filter: "+raw)
		}
		crit.Doshas = append(crit.Doshas, d)
	}

	if raw := q.Get("diet_type"); raw != "" {
		dt, ok := ParseDietType(raw)
		if !ok {
			return Criteria{}, echo.NewHTTPError(http.StatusBadRequest, "invalid diet_type: "+raw)
		}
		crit.DietType = dt
	}

	if crit.SortBy != "" && !crit.SortBy.Valid() {
		return Criteria{}, echo.NewHTTPError(http.StatusBadRequest, "invalid sort_by: "+string(crit.SortBy))
	}
	switch strings.ToLower(q.Get("order")) {
	case "", "asc", "ascending":
	case "desc", "descending":
		crit.Descending = true
	default:
		return Criteria{}, echo.NewHTTPError(http.StatusBadRequest, "invalid order: "+q.Get("order"))
	}
	if raw := q.Get("descending"); raw != "" {
		desc, err := strconv.ParseBool(raw)
		if err != nil {
			return Criteria{}, echo.NewHTTPError(http.StatusBadRequest, "invalid descending: "+raw)
		}
		crit.Descending = desc
	}

	pg := pagination.PageFromContext(c, defaultSize)
	crit.Page, crit.PageSize = pg.Page, pg.Size
	return crit, nil
}

func multiValue(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (h *Handler) ListFoods(c echo.Context) error {
	crit, err := CriteriaFromContext(c, h.svc.PageSize())
	if err != nil {
		return err
	}
	result, err := h.svc.Query(c.Request().Context(), crit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) Facets(c echo.Context) error {
	facets, err := h.svc.Facets(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, facets)
}

func (h *Handler) GetFood(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	f, err := h.svc.GetFood(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) CreateFood(c echo.Context) error {
	var f FoodItem
	if err := c.Bind(&f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateFood(c.Request().Context(), &f); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, f)
}

func (h *Handler) UpdateFood(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var f FoodItem
	if err := c.Bind(&f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	f.ID = id
	if err := h.svc.UpdateFood(c.Request().Context(), &f); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, f)
}

// ImportFoods accepts a multipart upload in field "file". Unreadable rows
// are reported alongside rows that failed validation.
func (h *Handler) ImportFoods(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing file")
	}
	if fh.Size > maxImportSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "workbook too large")
	}
	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer src.Close()

	items, rowErrs, err := ReadSpreadsheet(src)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	report, err := h.svc.Import(c.Request().Context(), items)
	if err != nil {
		return httpError(err)
	}
	report.Failed = append(rowErrs, report.Failed...)
	report.Total += len(rowErrs)
	return c.JSON(http.StatusOK, report)
}

func (h *Handler) ExportFoods(c echo.Context) error {
	items, err := h.svc.Snapshot(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	var buf bytes.Buffer
	if err := WriteSpreadsheet(&buf, items); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="foods.xlsx"`)
	return c.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
