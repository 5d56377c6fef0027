package leads

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingRepo struct{ Repository }

func (failingRepo) List(context.Context, ListFilter) ([]*Lead, error) {
	return nil, errors.New("db down")
}

func (failingRepo) GetByID(context.Context, string) (*Lead, error) {
	return nil, errors.New("db down")
}

func seededRepo(t *testing.T, n int) *InMemoryRepository {
	t.Helper()
	repo := NewInMemoryRepository()
	for i := 0; i < n; i++ {
		require.NoError(t, repo.Append(context.Background(), sampleRecord()))
	}
	return repo
}

func TestHandler_ListLeads(t *testing.T) {
	h := NewHandler(seededRepo(t, 3), nil)

	req := httptest.NewRequest(http.MethodGet, "/admin/leads?limit=2&offset=0", nil)
	rec := httptest.NewRecorder()
	h.ListLeads(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var resp ListLeadsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, 2, resp.Limit)
	assert.Len(t, resp.Leads, 2)
}

func TestHandler_ListLeadsIgnoresBadParams(t *testing.T) {
	h := NewHandler(seededRepo(t, 1), nil)

	req := httptest.NewRequest(http.MethodGet, "/admin/leads?limit=abc&offset=-3", nil)
	rec := httptest.NewRecorder()
	h.ListLeads(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ListLeadsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 50, resp.Limit)
	assert.Equal(t, 0, resp.Offset)
	assert.Equal(t, 1, resp.Count)
}

func TestHandler_ListLeadsRepoError(t *testing.T) {
	h := NewHandler(failingRepo{}, nil)
	rec := httptest.NewRecorder()
	h.ListLeads(rec, httptest.NewRequest(http.MethodGet, "/admin/leads", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandler_GetLead(t *testing.T) {
	repo := seededRepo(t, 1)
	list, err := repo.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	id := list[0].ID

	r := chi.NewRouter()
	h := NewHandler(repo, nil)
	r.Get("/admin/leads/{leadID}", h.GetLead)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/leads/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var lead Lead
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lead))
	assert.Equal(t, id, lead.ID)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/leads/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_GetLeadRepoError(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/admin/leads/{leadID}", NewHandler(failingRepo{}, nil).GetLead)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/leads/x", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestNewHandler_PanicsWithoutRepo(t *testing.T) {
	assert.Panics(t, func() { NewHandler(nil, nil) })
}
