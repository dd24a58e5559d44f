package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jardins/ghlsync/internal/config"
	"github.com/jardins/ghlsync/internal/errors"
	"github.com/jardins/ghlsync/internal/ghl"
	"github.com/jardins/ghlsync/internal/models"
	"github.com/jardins/ghlsync/internal/store"
)

func testGHLConfig(baseURL string) config.GHLConfig {
	return config.GHLConfig{
		BaseURL:      baseURL,
		APIVersion:   "2021-07-28",
		CompanyID:    "comp_1",
		AppID:        "app_1",
		ClientID:     "client_1",
		ClientSecret: "secret_1",
	}
}

func TestRefreshAgencyTokenNoStoredToken(t *testing.T) {
	ts := store.NewMemoryStore()
	svc := NewTokenService(testGHLConfig("http://unused"), ts, ghl.NewClient("http://unused", "2021-07-28"))

	_, err := svc.RefreshAgencyToken(context.Background())
	require.Error(t, err)

	var missing *errors.ErrMissingConfig
	require.True(t, stderrors.As(err, &missing))
}

func TestRefreshAgencyTokenNoRefreshToken(t *testing.T) {
	ts := store.NewMemoryStore()
	require.NoError(t, ts.SaveAgencyToken(&models.AgencyToken{AccessToken: "at_1"}))
	svc := NewTokenService(testGHLConfig("http://unused"), ts, ghl.NewClient("http://unused", "2021-07-28"))

	_, err := svc.RefreshAgencyToken(context.Background())
	require.Error(t, err)

	var missing *errors.ErrMissingConfig
	require.True(t, stderrors.As(err, &missing))
	require.Equal(t, "refresh_token", missing.Field)
}

func TestRefreshAgencyTokenStampsAndPersists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		require.Equal(t, "rt_old", r.Form.Get("refresh_token"))
		require.Equal(t, "Company", r.Form.Get("user_type"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"at_new","refresh_token":"rt_new","expires_in":86399}`)
	}))
	defer server.Close()

	ts := store.NewMemoryStore()
	require.NoError(t, ts.SaveAgencyToken(&models.AgencyToken{
		AccessToken:  "at_old",
		RefreshToken: "rt_old",
		CompanyID:    "comp_1",
	}))

	refreshedAt := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	svc := NewTokenService(testGHLConfig(server.URL), ts, ghl.NewClient(server.URL, "2021-07-28"),
		WithClock(func() time.Time { return refreshedAt }),
	)

	token, err := svc.RefreshAgencyToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "at_new", token.AccessToken)
	require.Equal(t, refreshedAt.Unix(), token.RefreshedAtUnix)
	require.Equal(t, "2026-03-14 09:26:53", token.RefreshedAtReadable)

	// company id carried over when the response omits it
	require.Equal(t, "comp_1", token.CompanyID)

	stored, err := ts.LoadAgencyToken()
	require.NoError(t, err)
	require.Equal(t, "at_new", stored.AccessToken)
	require.Equal(t, "rt_new", stored.RefreshToken)
}

func TestRefreshAgencyTokenTimestampsAdvance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"at_new","refresh_token":"rt_new"}`)
	}))
	defer server.Close()

	ts := store.NewMemoryStore()
	require.NoError(t, ts.SaveAgencyToken(&models.AgencyToken{AccessToken: "at_old", RefreshToken: "rt_old"}))

	clock := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	svc := NewTokenService(testGHLConfig(server.URL), ts, ghl.NewClient(server.URL, "2021-07-28"),
		WithClock(func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		}),
	)

	first, err := svc.RefreshAgencyToken(context.Background())
	require.NoError(t, err)
	second, err := svc.RefreshAgencyToken(context.Background())
	require.NoError(t, err)
	require.Greater(t, second.RefreshedAtUnix, first.RefreshedAtUnix)
}

func TestRefreshAgencyTokenRemoteFailureLeavesStateUntouched(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	ts := store.NewMemoryStore()
	require.NoError(t, ts.SaveAgencyToken(&models.AgencyToken{AccessToken: "at_old", RefreshToken: "rt_old"}))
	svc := NewTokenService(testGHLConfig(server.URL), ts, ghl.NewClient(server.URL, "2021-07-28"))

	_, err := svc.RefreshAgencyToken(context.Background())
	require.Error(t, err)

	var remote *errors.ErrRemote
	require.True(t, stderrors.As(err, &remote))
	require.Equal(t, http.StatusUnauthorized, remote.StatusCode)

	stored, err := ts.LoadAgencyToken()
	require.NoError(t, err)
	require.Equal(t, "at_old", stored.AccessToken)
	require.Equal(t, "rt_old", stored.RefreshToken)
}

func TestSyncInstalledLocationsReplacesStaleEntries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth/installedLocations", r.URL.Path)
		require.Equal(t, "comp_1", r.URL.Query().Get("companyId"))
		require.Equal(t, "app_1", r.URL.Query().Get("appId"))
		require.Equal(t, "true", r.URL.Query().Get("isInstalled"))
		fmt.Fprint(w, `{"locations":[{"_id":"loc_new","name":"Fresh"}]}`)
	}))
	defer server.Close()

	ts := store.NewMemoryStore()
	require.NoError(t, ts.SaveAgencyToken(&models.AgencyToken{AccessToken: "at_1", RefreshToken: "rt_1"}))
	require.NoError(t, ts.SaveLocations([]models.Location{models.NewLocation("loc_stale")}))

	svc := NewTokenService(testGHLConfig(server.URL), ts, ghl.NewClient(server.URL, "2021-07-28"))

	locations, err := svc.SyncInstalledLocations(context.Background())
	require.NoError(t, err)
	require.Len(t, locations, 1)
	require.Equal(t, "loc_new", locations[0].ID)

	stored, err := ts.LoadLocations()
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, "loc_new", stored[0].ID)
}

func TestSyncInstalledLocationsMissingAgencyToken(t *testing.T) {
	ts := store.NewMemoryStore()
	svc := NewTokenService(testGHLConfig("http://unused"), ts, ghl.NewClient("http://unused", "2021-07-28"))

	_, err := svc.SyncInstalledLocations(context.Background())
	var missing *errors.ErrMissingConfig
	require.True(t, stderrors.As(err, &missing))
}

func TestProvisionLocationTokensPartialFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth/locationToken", r.URL.Path)
		require.NoError(t, r.ParseForm())
		if r.Form.Get("locationId") == "loc_2" {
			http.Error(w, `{"message":"Forbidden resource"}`, http.StatusUnauthorized)
			return
		}
		fmt.Fprintf(w, `{"access_token":"at_%s","locationId":"%s"}`, r.Form.Get("locationId"), r.Form.Get("locationId"))
	}))
	defer server.Close()

	ts := store.NewMemoryStore()
	require.NoError(t, ts.SaveAgencyToken(&models.AgencyToken{AccessToken: "at_agency", RefreshToken: "rt", CompanyID: "comp_1"}))
	require.NoError(t, ts.SaveLocations([]models.Location{
		models.NewLocation("loc_1"),
		models.NewLocation("loc_2"),
		models.NewLocation("loc_3"),
	}))

	svc := NewTokenService(testGHLConfig(server.URL), ts, ghl.NewClient(server.URL, "2021-07-28"))

	locations, err := svc.ProvisionLocationTokens(context.Background())
	require.NoError(t, err)
	require.Len(t, locations, 3)

	require.Equal(t, "at_loc_1", locations[0].AccessToken())
	require.Nil(t, locations[0].TokenError())

	rec := locations[1].TokenError()
	require.NotNil(t, rec)
	require.Equal(t, http.StatusUnauthorized, rec.StatusCode)
	require.Contains(t, rec.Details, "Forbidden resource")

	require.Equal(t, "at_loc_3", locations[2].AccessToken())

	stored, err := ts.LoadLocations()
	require.NoError(t, err)
	require.NotNil(t, stored[1].TokenError())
}

func TestProvisionLocationTokensMissingID(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"access_token":"at_x"}`)
	}))
	defer server.Close()

	ts := store.NewMemoryStore()
	require.NoError(t, ts.SaveAgencyToken(&models.AgencyToken{AccessToken: "at_agency", RefreshToken: "rt", CompanyID: "comp_1"}))
	require.NoError(t, ts.SaveLocations([]models.Location{
		models.NewLocation(""),
		models.NewLocation("loc_1"),
	}))

	svc := NewTokenService(testGHLConfig(server.URL), ts, ghl.NewClient(server.URL, "2021-07-28"))

	locations, err := svc.ProvisionLocationTokens(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	rec := locations[0].TokenError()
	require.NotNil(t, rec)
	require.Contains(t, rec.Error, "id not found")
	require.Nil(t, locations[1].TokenError())
}
