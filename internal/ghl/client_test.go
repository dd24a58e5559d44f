package ghl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jardins/ghlsync/internal/errors"
	"github.com/stretchr/testify/require"
)

const testVersion = "2021-07-28"

func TestRefreshTokenSendsFormPayload(t *testing.T) {
	var gotForm map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/oauth/token", r.URL.Path)
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"grant_type":    r.PostForm.Get("grant_type"),
			"client_id":     r.PostForm.Get("client_id"),
			"refresh_token": r.PostForm.Get("refresh_token"),
			"user_type":     r.PostForm.Get("user_type"),
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "at_new",
			"refresh_token": "rt_new",
			"expires_in":    86399,
			"userType":      "Company",
		})
	}))
	defer server.Close()

	c := NewClient(server.URL, testVersion)
	token, err := c.RefreshToken(context.Background(), "cid", "secret", "rt_old", "Company")
	require.NoError(t, err)
	require.Equal(t, "at_new", token.AccessToken)
	require.Equal(t, "rt_new", token.RefreshToken)
	require.Equal(t, map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     "cid",
		"refresh_token": "rt_old",
		"user_type":     "Company",
	}, gotForm)
}

func TestRefreshTokenRemoteError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, testVersion)
	_, err := c.RefreshToken(context.Background(), "cid", "secret", "rt", "Company")

	var remote *errors.ErrRemote
	require.ErrorAs(t, err, &remote)
	require.Equal(t, http.StatusUnauthorized, remote.StatusCode)
	require.Contains(t, remote.Body, "invalid_grant")
}

func TestRefreshTokenTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	c := NewClient(server.URL, testVersion)
	_, err := c.RefreshToken(context.Background(), "cid", "secret", "rt", "Company")

	var transport *errors.ErrTransport
	require.ErrorAs(t, err, &transport)
}

func TestInstalledLocationsWrappedShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth/installedLocations", r.URL.Path)
		require.Equal(t, "Bearer agency_at", r.Header.Get("Authorization"))
		require.Equal(t, testVersion, r.Header.Get("Version"))
		require.Equal(t, "true", r.URL.Query().Get("isInstalled"))
		require.Equal(t, "comp_1", r.URL.Query().Get("companyId"))
		require.Equal(t, "app_1", r.URL.Query().Get("appId"))

		w.Write([]byte(`{"locations":[{"_id":"loc_1","name":"A"},{"_id":"loc_2","name":"B"}]}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, testVersion)
	locs, err := c.InstalledLocations(context.Background(), "agency_at", "comp_1", "app_1")
	require.NoError(t, err)
	require.Len(t, locs, 2)
	require.Equal(t, "loc_1", locs[0].ID)
}

func TestInstalledLocationsBareArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"loc_1"},{"id":"loc_2"}]`))
	}))
	defer server.Close()

	c := NewClient(server.URL, testVersion)
	locs, err := c.InstalledLocations(context.Background(), "agency_at", "comp_1", "app_1")
	require.NoError(t, err)
	require.Len(t, locs, 2)
	require.Equal(t, "loc_2", locs[1].ID)
}

func TestInstalledLocationsObjectWithoutKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"count":0}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, testVersion)
	locs, err := c.InstalledLocations(context.Background(), "agency_at", "comp_1", "app_1")
	require.NoError(t, err)
	require.Empty(t, locs)
}

func TestLocationTokenReturnsVerbatimBody(t *testing.T) {
	raw := `{"access_token":"loc_at","token_type":"Bearer","extra_field":{"nested":true}}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth/locationToken", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "comp_1", r.PostForm.Get("companyId"))
		require.Equal(t, "loc_1", r.PostForm.Get("locationId"))
		w.Write([]byte(raw))
	}))
	defer server.Close()

	c := NewClient(server.URL, testVersion)
	body, err := c.LocationToken(context.Background(), "agency_at", "comp_1", "loc_1")
	require.NoError(t, err)
	require.JSONEq(t, raw, string(body))
}

func TestCustomValuesEndpoints(t *testing.T) {
	var calls []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		require.Equal(t, "Bearer loc_at", r.Header.Get("Authorization"))
		require.Equal(t, testVersion, r.Header.Get("Version"))

		switch {
		case r.Method == http.MethodGet:
			w.Write([]byte(`{"customValues":[{"id":"cv_1","name":"jardins_base_completa","value":"old"}]}`))
		case r.Method == http.MethodPost, r.Method == http.MethodPut:
			var payload map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			require.NotEmpty(t, payload["name"])
			w.Write([]byte(`{"customValue":{"id":"cv_1"}}`))
		}
	}))
	defer server.Close()

	c := NewClient(server.URL, testVersion)

	values, err := c.ListCustomValues(context.Background(), "loc_at", "loc_1")
	require.NoError(t, err)
	require.Len(t, values, 1)
	require.Equal(t, "cv_1", values[0].ID)

	require.NoError(t, c.CreateCustomValue(context.Background(), "loc_at", "loc_1", "new_field", "hello"))
	require.NoError(t, c.UpdateCustomValue(context.Background(), "loc_at", "loc_1", "cv_1", "jardins_base_completa", "world"))

	require.Equal(t, []string{
		"GET /locations/loc_1/customValues",
		"POST /locations/loc_1/customValues",
		"PUT /locations/loc_1/customValues/cv_1",
	}, calls)
}

func TestNewTransportVariants(t *testing.T) {
	require.NotNil(t, newTransport(false))
	require.NotNil(t, newTransport(true))
}
