package resource_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/edgeflare/restable/internal/testutil/memstore"
	"github.com/edgeflare/restable/pkg/catalog"
	"github.com/edgeflare/restable/pkg/resource"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type testServer struct {
	mux   *http.ServeMux
	cat   *catalog.Catalog
	store *memstore.Store
}

func newTestServer(t *testing.T, opts ...resource.Option) *testServer {
	t.Helper()
	cat, store := memstore.Sakila(t)
	mux := http.NewServeMux()
	session := func(*http.Request) (resource.Store, error) { return store, nil }

	schemas := resource.DeriveCatalog(cat)
	for _, e := range cat.Entities() {
		h := resource.New(schemas[e.Name], session, opts...)
		mux.Handle("/"+e.Path, h)
		mux.Handle("/"+e.Path+"/{$}", h)
		mux.Handle("/"+e.Path+"/{id}", h)
	}
	return &testServer{mux: mux, cat: cat, store: store}
}

func (ts *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	ts.mux.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) entity(t *testing.T, name string) *catalog.Entity {
	e, err := ts.cat.Entity(name)
	require.NoError(t, err)
	return e
}

func decodeList(t *testing.T, rr *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var out []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func decodeObject(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func ids(recs []map[string]any) []float64 {
	out := make([]float64, len(recs))
	for i, r := range recs {
		out[i] = r["id"].(float64)
	}
	return out
}

func TestList(t *testing.T) {
	ts := newTestServer(t)

	t.Run("default page in natural order", func(t *testing.T) {
		recs := decodeList(t, ts.do(http.MethodGet, "/actors/", ""))
		assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, ids(recs))
	})

	t.Run("second page", func(t *testing.T) {
		recs := decodeList(t, ts.do(http.MethodGet, "/actors/?page=2&page_size=5", ""))
		assert.Equal(t, []float64{6, 7, 8, 9, 10}, ids(recs))
	})

	t.Run("past the end", func(t *testing.T) {
		recs := decodeList(t, ts.do(http.MethodGet, "/actors/?page=5&page_size=5", ""))
		assert.Empty(t, recs)
	})

	t.Run("malformed paging falls back to defaults", func(t *testing.T) {
		recs := decodeList(t, ts.do(http.MethodGet, "/actors/?page=abc&page_size=-3", ""))
		assert.Len(t, recs, 10)
		assert.Equal(t, float64(1), recs[0]["id"])
	})

	t.Run("page beyond the offset range is empty", func(t *testing.T) {
		rr := ts.do(http.MethodGet, "/actors/?page=922337203685477582&page_size=10", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, decodeList(t, rr))
	})

	t.Run("numbers with trailing junk fall back to defaults", func(t *testing.T) {
		recs := decodeList(t, ts.do(http.MethodGet, "/actors/?page=2abc&page_size=3", ""))
		assert.Equal(t, []float64{1, 2, 3}, ids(recs))
	})

	t.Run("without trailing slash", func(t *testing.T) {
		recs := decodeList(t, ts.do(http.MethodGet, "/languages", ""))
		assert.Len(t, recs, 3)
	})
}

func TestListSort(t *testing.T) {
	ts := newTestServer(t)

	t.Run("descending", func(t *testing.T) {
		recs := decodeList(t, ts.do(http.MethodGet, "/actors/?sort=last_name:desc&page_size=20", ""))
		require.Len(t, recs, 12)
		for i := 1; i < len(recs); i++ {
			assert.GreaterOrEqual(t, recs[i-1]["last_name"], recs[i]["last_name"])
		}
	})

	t.Run("multiple keys", func(t *testing.T) {
		recs := decodeList(t, ts.do(http.MethodGet, "/films/?sort=rental_duration:desc,title", ""))
		assert.Equal(t, []float64{3, 1, 2}, ids(recs))

		recs = decodeList(t, ts.do(http.MethodGet, "/films/?sort=rental_duration:desc&sort=title", ""))
		assert.Equal(t, []float64{3, 1, 2}, ids(recs))
	})

	t.Run("nulls sort last ascending and first descending", func(t *testing.T) {
		ts := newTestServer(t)
		film := ts.entity(t, "film")
		rec := ts.store.Row(film, 1)
		rec["length"] = nil
		ts.store.Put(film, rec)

		recs := decodeList(t, ts.do(http.MethodGet, "/films/?sort=length", ""))
		assert.Equal(t, []float64{2, 3, 1}, ids(recs))

		recs = decodeList(t, ts.do(http.MethodGet, "/films/?sort=length:desc", ""))
		assert.Equal(t, []float64{1, 3, 2}, ids(recs))
	})

	t.Run("unknown fields are ignored", func(t *testing.T) {
		recs := decodeList(t, ts.do(http.MethodGet, "/films/?sort=nope:desc,actors,length", ""))
		assert.Equal(t, []float64{2, 3, 1}, ids(recs))
	})
}

func TestListShape(t *testing.T) {
	ts := newTestServer(t)
	recs := decodeList(t, ts.do(http.MethodGet, "/films/", ""))
	require.Len(t, recs, 3)

	film := recs[0]
	assert.NotContains(t, film, "actors")
	assert.NotContains(t, film, "categories")
	assert.NotContains(t, film, "inventories")
	assert.Equal(t, "PG", film["rating"])
	assert.Equal(t, 0.99, film["rental_rate"])
	assert.Nil(t, film["original_language"])

	language, ok := film["language"].(map[string]any)
	require.True(t, ok, "language is embedded")
	assert.Equal(t, "English", language["name"])
	assert.NotContains(t, language, "films")

	assert.Equal(t, "NC_17", recs[2]["rating"])
}

func TestListCompact(t *testing.T) {
	ts := newTestServer(t)

	pretty := ts.do(http.MethodGet, "/languages/", "")
	assert.Contains(t, pretty.Body.String(), "\n    {")

	compact := ts.do(http.MethodGet, "/languages/?compact=true", "")
	assert.Equal(t, 1, strings.Count(compact.Body.String(), "\n"))
	assert.JSONEq(t, pretty.Body.String(), compact.Body.String())
}

func TestListMaxPageSize(t *testing.T) {
	ts := newTestServer(t, resource.WithPageSize(2, 5))

	assert.Len(t, decodeList(t, ts.do(http.MethodGet, "/actors/", "")), 2)
	assert.Len(t, decodeList(t, ts.do(http.MethodGet, "/actors/?page_size=100", "")), 5)
}

func TestRead(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodGet, "/films/1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	film := decodeObject(t, rr)
	assert.Equal(t, "ACADEMY DINOSAUR", film["title"])
	assert.Equal(t, []any{float64(1), float64(2)}, film["actors"])
	assert.Equal(t, []any{float64(1)}, film["categories"])
	assert.Equal(t, []any{float64(1), float64(2)}, film["inventories"])
	assert.Equal(t, "English", film["language"].(map[string]any)["name"])

	rr = ts.do(http.MethodGet, "/films/3", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []any{}, decodeObject(t, rr)["actors"])
}

func TestReadNotFound(t *testing.T) {
	ts := newTestServer(t)

	for _, target := range []string{"/actors/999", "/actors/abc"} {
		rr := ts.do(http.MethodGet, target, "")
		assert.Equal(t, http.StatusNotFound, rr.Code, target)
		assert.JSONEq(t, `{"message":"Not Found","code":404}`, rr.Body.String())
	}
}

func TestActorLifecycle(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodPost, "/actors/", `{"first_name":"ED","last_name":"CHASE"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	id, err := strconv.ParseInt(strings.TrimSpace(rr.Body.String()), 10, 64)
	require.NoError(t, err)
	assert.Equal(t, int64(13), id)
	path := "/actors/" + strconv.FormatInt(id, 10)

	rr = ts.do(http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rr.Code)
	actor := decodeObject(t, rr)
	assert.Equal(t, float64(id), actor["id"])
	assert.Equal(t, "ED", actor["first_name"])
	assert.Equal(t, "CHASE", actor["last_name"])
	_, err = time.Parse(time.RFC3339Nano, actor["last_update"].(string))
	assert.NoError(t, err)
	assert.Equal(t, []any{}, actor["films"])

	rr = ts.do(http.MethodPatch, path, `{"last_name":"SMITH"}`)
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())
	assert.Empty(t, rr.Body.String())

	actor = decodeObject(t, ts.do(http.MethodGet, path, ""))
	assert.Equal(t, "ED", actor["first_name"])
	assert.Equal(t, "SMITH", actor["last_name"])

	rr = ts.do(http.MethodDelete, path, "")
	require.Equal(t, http.StatusNoContent, rr.Code)

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, path, "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodDelete, path, "").Code)
}

func TestCreateIgnoresReadOnly(t *testing.T) {
	ts := newTestServer(t)
	actor := ts.entity(t, "actor")

	rr := ts.do(http.MethodPost, "/actors/", `{"id":1,"first_name":"ED","last_name":"CHASE","last_update":"1999-01-01T00:00:00Z"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "13", strings.TrimSpace(rr.Body.String()))

	row := ts.store.Row(actor, 13)
	require.NotNil(t, row)
	assert.True(t, row["last_update"].(time.Time).After(memstore.Seeded))
	assert.Equal(t, "PENELOPE", ts.store.Row(actor, 1)["first_name"])
}

func TestCreateFilm(t *testing.T) {
	ts := newTestServer(t)
	film := ts.entity(t, "film")

	body := `{
		"title": "AIRPLANE SIERRA",
		"language": {"id": 2},
		"rating": "PG_13",
		"rental_rate": "4.994",
		"actors": [4, {"id": 5}, 4]
	}`
	rr := ts.do(http.MethodPost, "/films/", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "4", strings.TrimSpace(rr.Body.String()))

	row := ts.store.Row(film, 4)
	assert.Equal(t, int64(2), row["language_id"])
	assert.Equal(t, "PG-13", row["rating"])
	assert.Equal(t, "4.99", row["rental_rate"].(decimal.Decimal).String())

	got := decodeObject(t, ts.do(http.MethodGet, "/films/4", ""))
	assert.Equal(t, "PG_13", got["rating"])
	assert.Equal(t, "Italian", got["language"].(map[string]any)["name"])
	assert.Equal(t, []any{float64(4), float64(5)}, got["actors"])
}

func TestValidation(t *testing.T) {
	ts := newTestServer(t)
	actor := ts.entity(t, "actor")

	tests := []struct {
		name        string
		method      string
		target      string
		body        string
		description string
	}{
		{
			name:        "every field is reported",
			method:      http.MethodPost,
			target:      "/actors/",
			body:        `{"first_name": 5}`,
			description: `{"first_name":["Not a valid string."],"last_name":["Missing data for required field."]}`,
		},
		{
			name:        "full update requires every field",
			method:      http.MethodPut,
			target:      "/actors/1",
			body:        `{"first_name":"PENNY"}`,
			description: `{"last_name":["Missing data for required field."]}`,
		},
		{
			name:        "null on a required field",
			method:      http.MethodPatch,
			target:      "/actors/1",
			body:        `{"last_name":null}`,
			description: `{"last_name":["Field may not be null."]}`,
		},
		{
			name:        "enum member",
			method:      http.MethodPatch,
			target:      "/films/1",
			body:        `{"rating":"X","length":"long"}`,
			description: `{"rating":["Invalid enum member X"],"length":["Not a valid integer."]}`,
		},
		{
			name:        "collection must be a list",
			method:      http.MethodPatch,
			target:      "/films/1",
			body:        `{"actors":3}`,
			description: `{"actors":["Not a valid list."]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(tt.method, tt.target, tt.body)
			require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
			body := decodeObject(t, rr)
			assert.Equal(t, "Unprocessable Entity", body["message"])
			description, err := json.Marshal(body["description"])
			require.NoError(t, err)
			assert.JSONEq(t, tt.description, string(description))
		})
	}

	assert.Equal(t, 12, ts.store.Len(actor))
	assert.Equal(t, "GUINESS", ts.store.Row(actor, 1)["last_name"])
}

func TestBadRequest(t *testing.T) {
	ts := newTestServer(t)

	for _, body := range []string{`{"first_name":`, `[1,2]`, `null`} {
		rr := ts.do(http.MethodPost, "/actors/", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
	}
}

func TestUpdate(t *testing.T) {
	ts := newTestServer(t)
	actor := ts.entity(t, "actor")

	t.Run("put replaces fields", func(t *testing.T) {
		rr := ts.do(http.MethodPut, "/actors/2", `{"first_name":"NICHOLAS","last_name":"WAHLBERG"}`)
		require.Equal(t, http.StatusNoContent, rr.Code)
		row := ts.store.Row(actor, 2)
		assert.Equal(t, "NICHOLAS", row["first_name"])
		assert.True(t, row["last_update"].(time.Time).After(memstore.Seeded))
	})

	t.Run("unchanged values write nothing", func(t *testing.T) {
		rr := ts.do(http.MethodPatch, "/actors/3", `{"first_name":"ED"}`)
		require.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, memstore.Seeded, ts.store.Row(actor, 3)["last_update"])
	})

	t.Run("missing", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPut, "/actors/999", `{"first_name":"A","last_name":"B"}`).Code)
		assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPatch, "/actors/999", `{}`).Code)
	})

	t.Run("many to many replaces associations", func(t *testing.T) {
		rr := ts.do(http.MethodPatch, "/films/1", `{"actors":[3]}`)
		require.Equal(t, http.StatusNoContent, rr.Code)
		film := decodeObject(t, ts.do(http.MethodGet, "/films/1", ""))
		assert.Equal(t, []any{float64(3)}, film["actors"])

		rr = ts.do(http.MethodPatch, "/films/1", `{"actors":[]}`)
		require.Equal(t, http.StatusNoContent, rr.Code)
		film = decodeObject(t, ts.do(http.MethodGet, "/films/1", ""))
		assert.Equal(t, []any{}, film["actors"])
	})

	t.Run("has many attaches", func(t *testing.T) {
		rr := ts.do(http.MethodPatch, "/languages/3", `{"films":[2]}`)
		require.Equal(t, http.StatusNoContent, rr.Code)
		language := decodeObject(t, ts.do(http.MethodGet, "/languages/3", ""))
		assert.Equal(t, []any{float64(2)}, language["films"])
		assert.Equal(t, "Japanese", decodeObject(t, ts.do(http.MethodGet, "/films/2", ""))["language"].(map[string]any)["name"])
	})
}

func TestDeleteRemovesAssociations(t *testing.T) {
	ts := newTestServer(t)

	require.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, "/films/1", "").Code)
	for _, row := range ts.store.Joins("film_actor") {
		assert.NotEqual(t, int64(1), row["film_id"])
	}
	assert.Empty(t, ts.store.Joins("film_category"))
	assert.Len(t, ts.store.Joins("film_actor"), 1)
}

func TestDescribe(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodOptions, "/actors/", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Name   string                              `json:"name"`
		Fields map[string]resource.FieldDescriptor `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "Actors", body.Name)
	assert.Len(t, body.Fields, 5)

	id := body.Fields["id"]
	assert.True(t, id.Readable)
	assert.False(t, id.Writable)
	assert.Equal(t, "integer", id.Type)
	lastUpdate := body.Fields["last_update"]
	assert.True(t, lastUpdate.Readable)
	assert.False(t, lastUpdate.Writable)
	firstName := body.Fields["first_name"]
	assert.True(t, firstName.Readable)
	assert.True(t, firstName.Writable)
	assert.True(t, firstName.Required)
	require.NotNil(t, body.Fields["films"].Many)
	assert.True(t, *body.Fields["films"].Many)
	assert.Nil(t, firstName.Many)

	rr = ts.do(http.MethodOptions, "/actors/1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Actor", decodeObject(t, rr)["name"])
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		method string
		target string
		allow  string
	}{
		{http.MethodPost, "/actors/1", "GET, PUT, PATCH, DELETE, OPTIONS"},
		{http.MethodPut, "/actors/", "GET, POST, OPTIONS"},
		{http.MethodPatch, "/actors/", "GET, POST, OPTIONS"},
		{http.MethodDelete, "/actors", "GET, POST, OPTIONS"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rr := ts.do(tt.method, tt.target, `{}`)
			assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
			assert.Equal(t, tt.allow, rr.Header().Get("Allow"))
		})
	}
}

func TestPersistenceError(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ts := newTestServer(t, resource.WithLogger(zap.New(core)))
	ts.store.Fail = func(op, table string) error {
		return &pgconn.PgError{Code: "23503", Message: "insert or update on table \"film\" violates foreign key constraint"}
	}

	rr := ts.do(http.MethodPost, "/films/", `{"title":"ORPHAN","language_id":99}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.JSONEq(t, `{"message":"Unprocessable Entity","code":422,"description":"Database error"}`, rr.Body.String())
	assert.NotContains(t, rr.Body.String(), "foreign key")

	entries := logs.FilterMessage("persistence failure").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "film", fields["resource"])
	assert.Equal(t, resource.OpCreate, fields["operation"])
	assert.Equal(t, "foreign_key_violation", fields["reason"])
}

func TestSessionError(t *testing.T) {
	cat, _ := memstore.Sakila(t)
	e, err := cat.Entity("actor")
	require.NoError(t, err)
	h := resource.New(resource.Derive(e), func(*http.Request) (resource.Store, error) {
		return nil, assert.AnError
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/actors/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), assert.AnError.Error())
}

func TestObserver(t *testing.T) {
	type call struct {
		entity, op string
		status     int
	}
	var (
		mu    sync.Mutex
		calls []call
	)
	ts := newTestServer(t, resource.WithObserver(func(entity, op string, status int, elapsed time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		assert.GreaterOrEqual(t, elapsed, time.Duration(0))
		calls = append(calls, call{entity, op, status})
	}))

	ts.do(http.MethodGet, "/actors/", "")
	ts.do(http.MethodPost, "/actors/", `{"first_name":"ED","last_name":"CHASE"}`)
	ts.do(http.MethodGet, "/actors/999", "")
	ts.do(http.MethodPost, "/actors/1", "")
	ts.do(http.MethodOptions, "/films/", "")

	assert.Equal(t, []call{
		{"actor", resource.OpList, http.StatusOK},
		{"actor", resource.OpCreate, http.StatusCreated},
		{"actor", resource.OpRead, http.StatusNotFound},
		{"actor", resource.OpInvalid, http.StatusMethodNotAllowed},
		{"film", resource.OpDescribe, http.StatusOK},
	}, calls)
}
