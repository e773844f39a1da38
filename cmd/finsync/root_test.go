package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/finsync/jsonapi"
)

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/uncategorised", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page[offset]") != "0" {
			_, _ = io.WriteString(w, `{"data":[]}`)
			return
		}
		_, _ = io.WriteString(w, `{"data":[{"type":"transactions","id":"t1","attributes":{"date":"2024-03-05","amount":4.5}}]}`)
	})
	mux.HandleFunc("GET /api/categories", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[{"type":"categories","id":"2","attributes":{"title":"B"}},{"type":"categories","id":"1","attributes":{"title":"A"}}]}`)
	})
	mux.HandleFunc("GET /api/categories/{id}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("POST /api/categories", func(w http.ResponseWriter, r *http.Request) {
		var doc jsonapi.Document
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&doc)) {
			return
		}
		doc.Data.ID = "9"
		_ = json.NewEncoder(w).Encode(doc)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	srv := newBackend(t)
	t.Setenv("FINSYNC_BASE_URL", srv.URL)
	t.Setenv("FINSYNC_LOG_LEVEL", "error")
	t.Setenv("FINSYNC_DATE_LOCATION", "UTC")

	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	cmd.SetErr(io.Discard)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestPageCommand(t *testing.T) {
	out, err := run(t, "page", "uncategorised", "--pages", "3")
	require.NoError(t, err)

	var got []jsonapi.Resource
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "transactions", got[0].Type)
	date, _ := got[0].Attributes["date"].Str()
	assert.Equal(t, "2024-03-05", date)
}

func TestListCommandSortsByID(t *testing.T) {
	out, err := run(t, "list", "categories")
	require.NoError(t, err)

	var got []jsonapi.Resource
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
}

func TestGetCommandNotFound(t *testing.T) {
	_, err := run(t, "get", "categories", "404")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestCategoryCreateCommand(t *testing.T) {
	out, err := run(t, "category", "create", "--title", "Food")
	require.NoError(t, err)

	var got jsonapi.Resource
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "9", got.ID)

	_, err = run(t, "category", "create")
	require.Error(t, err)
}

func TestExecuteReportsErrorsOnStderr(t *testing.T) {
	srv := newBackend(t)
	t.Setenv("FINSYNC_BASE_URL", srv.URL)
	t.Setenv("FINSYNC_LOG_LEVEL", "error")

	var out, errOut bytes.Buffer
	code := execute(t.Context(), []string{"get", "categories", "404"}, &out, &errOut)
	assert.Equal(t, 1, code)
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "Error: ")
	assert.Contains(t, errOut.String(), `categories "404"`)

	errOut.Reset()
	t.Setenv("FINSYNC_PAGE_SIZE", "-5")
	code = execute(t.Context(), []string{"list", "categories"}, &out, &errOut)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "FINSYNC_PAGE_SIZE")

	errOut.Reset()
	t.Setenv("FINSYNC_PAGE_SIZE", "30")
	code = execute(t.Context(), []string{"list", "categories"}, &out, &errOut)
	assert.Zero(t, code)
	assert.Empty(t, errOut.String())
}
