package proposer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayurdiet/ayurdiet/internal/domain/nutrition"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	c := NewClient(Config{
		BaseURL:    srv.URL,
		APIKey:     "secret",
		Timeout:    2 * time.Second,
		RetryCount: 1,
		RetryWait:  5 * time.Millisecond,
	}, zerolog.Nop())
	return c, &calls
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestPropose_Success(t *testing.T) {
	var got Request
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/meal-plans", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, `{
			"meal_plan": {"Monday": {"Breakfast": [{"food_id": "f1", "amount": 150, "unit": "g"}]}},
			"goals": {"macronutrients": {"calories": 1800}},
			"considerations": "Favour warm, cooked meals."
		}`)
	})

	p, err := c.Propose(context.Background(), Request{
		Patient: PatientContext{Age: 42, Constitution: "vata-pitta", Allergies: []string{"peanut"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Entries())
	assert.Equal(t, "f1", p.MealPlan["Monday"]["Breakfast"][0].FoodID)
	require.NotNil(t, p.Goals)
	assert.Equal(t, 1800.0, p.Goals.Macros[nutrition.Calories])
	assert.Equal(t, "Favour warm, cooked meals.", p.Considerations)

	assert.Equal(t, 42, got.Patient.Age)
	assert.Nil(t, got.Goals)
}

func TestPropose_ErrorStatusRetriedThenFails(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadGateway, `{"error":"model overloaded"}`)
	})

	_, err := c.Propose(context.Background(), Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestPropose_ClientErrorNotRetried(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"error":"bad patient"}`)
	})

	_, err := c.Propose(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestPropose_MalformedBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"meal_plan": [`)
	})

	_, err := c.Propose(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestPropose_EmptyPlan(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"meal_plan": {"monday": {"lunch": []}}, "considerations": "none"}`)
	})

	_, err := c.Propose(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestPropose_TransportFailure(t *testing.T) {
	c := NewClient(Config{
		BaseURL:   "http://127.0.0.1:1",
		Timeout:   200 * time.Millisecond,
		RetryWait: time.Millisecond,
	}, zerolog.Nop())

	_, err := c.Propose(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestPropose_ContextCancelled(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		writeJSON(w, http.StatusOK, `{"meal_plan":{"monday":{"lunch":[{"food_id":"x","amount":1}]}}}`)
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Propose(ctx, Request{})
	assert.ErrorIs(t, err, ErrUpstream)
}
