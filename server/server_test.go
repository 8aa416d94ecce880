package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvant/advisor/internal/models"
	"github.com/kvant/advisor/server"
)

type stubCore struct {
	result models.AnswerResult
	err    error
	query  string
}

func (c *stubCore) Answer(ctx context.Context, query string) (models.AnswerResult, error) {
	c.query = query
	if c.err != nil {
		return models.AnswerResult{}, c.err
	}
	return c.result, nil
}

func (c *stubCore) HealthCheck(ctx context.Context) models.HealthReport {
	return models.HealthReport{
		Status: models.StatusHealthy,
		Components: []models.ComponentStatus{
			{Name: "knowledge_base", Status: models.StatusHealthy},
			{Name: "generation_client", Status: models.StatusHealthy},
		},
	}
}

func (c *stubCore) Stats() models.Stats {
	return models.Stats{TotalChunks: 12, EmbeddingDimension: 768, Model: "gpt-3.5-turbo", Provider: "openai"}
}

func postChat(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestChat_OK(t *testing.T) {
	core := &stubCore{result: models.AnswerResult{
		Response:       "Пай — это именная ценная бумага.",
		ContextFound:   true,
		ProcessingTime: 1.23456,
	}}
	handler := server.New(core, nil).Handler()

	w := postChat(t, handler, `{"query":"Что такое пай?"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp server.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Пай — это именная ценная бумага.", resp.Response)
	assert.True(t, resp.ContextFound)
	assert.Equal(t, 1.235, resp.ProcessingTime) // rounded to 3 decimals
	assert.Equal(t, "Что такое пай?", core.query)
}

func TestChat_EmptyQueryRejected(t *testing.T) {
	handler := server.New(&stubCore{}, nil).Handler()

	for _, body := range []string{`{"query":""}`, `{"query":"   "}`, `{}`} {
		w := postChat(t, handler, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %s", body)
	}
}

func TestChat_TooLongQueryRejected(t *testing.T) {
	handler := server.New(&stubCore{}, nil).Handler()

	long := strings.Repeat("а", 1001)
	w := postChat(t, handler, `{"query":"`+long+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChat_MalformedBodyRejected(t *testing.T) {
	handler := server.New(&stubCore{}, nil).Handler()

	w := postChat(t, handler, `{"query":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChat_InvalidQueryFromCoreIs400(t *testing.T) {
	core := &stubCore{err: models.ErrInvalidQuery}
	handler := server.New(core, nil).Handler()

	w := postChat(t, handler, `{"query":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChat_InternalErrorHidesDetail(t *testing.T) {
	core := &stubCore{err: context.DeadlineExceeded}
	handler := server.New(core, nil).Handler()

	w := postChat(t, handler, `{"query":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "deadline")
}

func TestChat_MethodNotAllowed(t *testing.T) {
	handler := server.New(&stubCore{}, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHealth(t *testing.T) {
	handler := server.New(&stubCore{}, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var report models.HealthReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, models.StatusHealthy, report.Status)
	assert.Len(t, report.Components, 2)
}

func TestStats(t *testing.T) {
	handler := server.New(&stubCore{}, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var stats models.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 12, stats.TotalChunks)
	assert.Equal(t, "gpt-3.5-turbo", stats.Model)
}
