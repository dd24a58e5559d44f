package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jardins/ghlsync/internal/ghl"
	"github.com/jardins/ghlsync/internal/models"
)

// fakeCustomValues is an in-memory custom-values endpoint that assigns ids
// on create, so upsert behavior can be exercised end to end.
type fakeCustomValues struct {
	mu     sync.Mutex
	values []models.CustomValue
	nextID int
	calls  []string
}

func (f *fakeCustomValues) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls = append(f.calls, r.Method+" "+r.URL.Path)

		switch r.Method {
		case http.MethodGet:
			resp := map[string]interface{}{"customValues": f.values}
			require.NoError(t, json.NewEncoder(w).Encode(resp))
		case http.MethodPost:
			var payload struct {
				Name  string `json:"name"`
				Value string `json:"value"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			f.nextID++
			f.values = append(f.values, models.CustomValue{
				ID:    fmt.Sprintf("cv_%d", f.nextID),
				Name:  payload.Name,
				Value: payload.Value,
			})
			w.WriteHeader(http.StatusCreated)
		case http.MethodPut:
			var payload struct {
				Name  string `json:"name"`
				Value string `json:"value"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			for i := range f.values {
				if "/locations/loc_1/customValues/"+f.values[i].ID == r.URL.Path {
					f.values[i].Value = payload.Value
					w.WriteHeader(http.StatusOK)
					return
				}
			}
			http.NotFound(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

func TestPublishCreatesThenUpdates(t *testing.T) {
	fake := &fakeCustomValues{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	p := NewPublisher(ghl.NewClient(server.URL, "2021-07-28"), nil, nil)

	require.NoError(t, p.Publish(context.Background(), "loc_token", "loc_1", "jardins_base_completa", "v1"))
	require.NoError(t, p.Publish(context.Background(), "loc_token", "loc_1", "jardins_base_completa", "v2"))

	require.Len(t, fake.values, 1)
	require.Equal(t, "v2", fake.values[0].Value)
	require.Equal(t, []string{
		"GET /locations/loc_1/customValues",
		"POST /locations/loc_1/customValues",
		"GET /locations/loc_1/customValues",
		"PUT /locations/loc_1/customValues/cv_1",
	}, fake.calls)
}

func TestPublishMatchesFirstByExactName(t *testing.T) {
	fake := &fakeCustomValues{
		values: []models.CustomValue{
			{ID: "cv_a", Name: "jardins_base_completa_v2", Value: "other"},
			{ID: "cv_b", Name: "jardins_base_completa", Value: "old"},
			{ID: "cv_c", Name: "jardins_base_completa", Value: "dup"},
		},
	}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	p := NewPublisher(ghl.NewClient(server.URL, "2021-07-28"), nil, nil)
	require.NoError(t, p.Publish(context.Background(), "loc_token", "loc_1", "jardins_base_completa", "new"))

	require.Equal(t, "new", fake.values[1].Value)
	require.Equal(t, "dup", fake.values[2].Value)
	require.Equal(t, "other", fake.values[0].Value)
}

func TestPublishLookupFailureAbortsBeforeWrite(t *testing.T) {
	writes := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writes++
		}
		http.Error(w, `{"message":"upstream error"}`, http.StatusBadGateway)
	}))
	defer server.Close()

	p := NewPublisher(ghl.NewClient(server.URL, "2021-07-28"), nil, nil)
	err := p.Publish(context.Background(), "loc_token", "loc_1", "jardins_base_completa", "v1")
	require.Error(t, err)
	require.Zero(t, writes)
}
