package dietchart

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ayurdiet/ayurdiet/internal/platform/auth"
	"github.com/ayurdiet/ayurdiet/internal/platform/proposer"
	"github.com/ayurdiet/ayurdiet/pkg/pagination"
)

// newTestServer mounts the handler under /api/v1 as userID with roles.
func newTestServer(h *Handler, userID string, roles ...string) *echo.Echo {
	e := echo.New()
	api := e.Group("/api/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := auth.WithIdentity(c.Request().Context(), userID, roles)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	h.RegisterRoutes(api)
	return e
}

func doJSON(e *echo.Echo, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_CreateAndGet(t *testing.T) {
	env := newTestEnv()
	owner := uuid.New()
	e := newTestServer(NewHandler(env.svc), owner.String(), auth.RoleDoctor)

	rec := doJSON(e, http.MethodPost, "/api/v1/diet-charts", env.input(t))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created DietChart
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.PractitionerID != owner || created.Status != StatusActive {
		t.Errorf("unexpected chart: owner %s status %s", created.PractitionerID, created.Status)
	}

	rec = doJSON(e, http.MethodGet, "/api/v1/diet-charts/"+created.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodGet, "/api/v1/diet-charts/"+created.ID.String()+"/summary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var view SummaryView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.ChartID != created.ID || len(view.Rows) == 0 {
		t.Errorf("unexpected summary view: %+v", view)
	}
}

func TestHandler_CreateInvalid(t *testing.T) {
	env := newTestEnv()
	e := newTestServer(NewHandler(env.svc), uuid.NewString(), auth.RoleDoctor)

	rec := doJSON(e, http.MethodPost, "/api/v1/diet-charts", map[string]any{
		"patient": map[string]any{"name": "No Id"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodPost, "/api/v1/diet-charts", map[string]any{
		"patient":   map[string]any{"patient_id": uuid.NewString(), "name": "A"},
		"meal_plan": map[string]any{"Funday": map[string]any{}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown day: expected 400, got %d", rec.Code)
	}
}

func TestHandler_WritesNeedPractitionerIdentity(t *testing.T) {
	env := newTestEnv()
	e := newTestServer(NewHandler(env.svc), "not-a-uuid", auth.RoleDoctor)

	rec := doJSON(e, http.MethodPost, "/api/v1/diet-charts", env.input(t))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestHandler_PatientCannotWrite(t *testing.T) {
	env := newTestEnv()
	e := newTestServer(NewHandler(env.svc), uuid.NewString(), auth.RolePatient)

	rec := doJSON(e, http.MethodPost, "/api/v1/diet-charts", env.input(t))
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestHandler_UpdateByOtherPractitioner(t *testing.T) {
	env := newTestEnv()
	c := env.create(t, uuid.New())
	e := newTestServer(NewHandler(env.svc), uuid.NewString(), auth.RoleDoctor)

	rec := doJSON(e, http.MethodPut, "/api/v1/diet-charts/"+c.ID.String(), map[string]any{
		"special_instructions": "hijack",
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestHandler_UpdateAndStatus(t *testing.T) {
	env := newTestEnv()
	owner := uuid.New()
	c := env.create(t, owner)
	e := newTestServer(NewHandler(env.svc), owner.String(), auth.RoleDoctor)

	rec := doJSON(e, http.MethodPut, "/api/v1/diet-charts/"+c.ID.String(), map[string]any{
		"special_instructions": "light dinners",
		"version_id":           1,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(e, http.MethodPut, "/api/v1/diet-charts/"+c.ID.String(), map[string]any{
		"special_instructions": "stale",
		"version_id":           1,
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodPatch, "/api/v1/diet-charts/"+c.ID.String()+"/status", map[string]any{"status": "completed"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(e, http.MethodPatch, "/api/v1/diet-charts/"+c.ID.String()+"/status", map[string]any{"status": "draft"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("completed -> draft: expected 400, got %d", rec.Code)
	}
}

func TestHandler_GetErrors(t *testing.T) {
	env := newTestEnv()
	e := newTestServer(NewHandler(env.svc), uuid.NewString(), auth.RolePatient)

	if rec := doJSON(e, http.MethodGet, "/api/v1/diet-charts/bogus", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: expected 400, got %d", rec.Code)
	}
	if rec := doJSON(e, http.MethodGet, "/api/v1/diet-charts/"+uuid.NewString(), nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing: expected 404, got %d", rec.Code)
	}
}

func TestHandler_List(t *testing.T) {
	env := newTestEnv()
	owner := uuid.New()
	c := env.create(t, owner)
	env.create(t, owner)
	e := newTestServer(NewHandler(env.svc), owner.String(), auth.RoleDoctor)

	rec := doJSON(e, http.MethodGet, "/api/v1/diet-charts?limit=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var page pagination.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 2 || page.Limit != 1 || !page.HasMore {
		t.Errorf("unexpected page: %+v", page)
	}

	rec = doJSON(e, http.MethodGet, "/api/v1/diet-charts?patient_id="+c.Patient.PatientID.String(), nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 1 {
		t.Errorf("expected one chart for the patient, got %d", page.Total)
	}

	if rec := doJSON(e, http.MethodGet, "/api/v1/diet-charts?patient_id=nope", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_Delete(t *testing.T) {
	env := newTestEnv()
	owner := uuid.New()
	c := env.create(t, owner)
	e := newTestServer(NewHandler(env.svc), owner.String(), auth.RoleDoctor)

	if rec := doJSON(e, http.MethodDelete, "/api/v1/diet-charts/"+c.ID.String()+"?hard=maybe", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if rec := doJSON(e, http.MethodDelete, "/api/v1/diet-charts/"+c.ID.String(), nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if env.repo.charts[c.ID].Status != StatusDiscontinued {
		t.Error("soft delete should discontinue")
	}
	if rec := doJSON(e, http.MethodDelete, "/api/v1/diet-charts/"+c.ID.String()+"?hard=true", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if _, ok := env.repo.charts[c.ID]; ok {
		t.Error("hard delete should remove the chart")
	}
}

func TestHandler_Propose(t *testing.T) {
	env := newTestEnv()
	e := newTestServer(NewHandler(env.svc), uuid.NewString(), auth.RoleDoctor)
	body := map[string]any{"patient": map[string]any{"patient_id": uuid.NewString(), "name": "Asha"}}

	env.prop.reply = &proposer.Proposal{MealPlan: map[string]map[string][]proposer.ProposedEntry{
		"monday": {"breakfast": {{FoodID: env.rice.ID.String(), Amount: 100}}},
	}}
	rec := doJSON(e, http.MethodPost, "/api/v1/diet-charts/propose", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	env.prop.reply, env.prop.err = nil, proposer.ErrUpstream
	rec = doJSON(e, http.MethodPost, "/api/v1/diet-charts/propose", body)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}

	env.prop.reply, env.prop.err = &proposer.Proposal{MealPlan: map[string]map[string][]proposer.ProposedEntry{
		"monday": {"breakfast": {{FoodID: uuid.NewString(), Amount: 100}}},
	}}, nil
	rec = doJSON(e, http.MethodPost, "/api/v1/diet-charts/propose", body)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
