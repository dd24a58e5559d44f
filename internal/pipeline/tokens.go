package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jardins/ghlsync/internal/config"
	"github.com/jardins/ghlsync/internal/errors"
	"github.com/jardins/ghlsync/internal/ghl"
	"github.com/jardins/ghlsync/internal/logging"
	"github.com/jardins/ghlsync/internal/metrics"
	"github.com/jardins/ghlsync/internal/models"
	"github.com/jardins/ghlsync/internal/store"
)

// Stage names recorded into run history.
const (
	StageGenerate  = "generate_content"
	StageRefresh   = "refresh_agency_token"
	StageSync      = "sync_installed_locations"
	StageProvision = "provision_location_tokens"
	StagePublish   = "publish_custom_values"
)

const defaultUserType = "Company"

// TokenService drives the three credential stages against the token store
// and the remote API. Stages are strictly ordered: refresh feeds sync,
// sync feeds provision.
type TokenService struct {
	cfg     config.GHLConfig
	store   store.TokenStore
	client  *ghl.Client
	logger  *logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// TokenServiceOption configures a TokenService.
type TokenServiceOption func(*TokenService)

// WithTokenLogger sets the service logger.
func WithTokenLogger(l *logging.Logger) TokenServiceOption {
	return func(s *TokenService) {
		s.logger = l
	}
}

// WithTokenMetrics sets the metrics recorder.
func WithTokenMetrics(m *metrics.Metrics) TokenServiceOption {
	return func(s *TokenService) {
		s.metrics = m
	}
}

// WithClock replaces the timestamp source, for tests.
func WithClock(now func() time.Time) TokenServiceOption {
	return func(s *TokenService) {
		s.now = now
	}
}

// NewTokenService creates a token service.
func NewTokenService(cfg config.GHLConfig, ts store.TokenStore, client *ghl.Client, opts ...TokenServiceOption) *TokenService {
	s := &TokenService{
		cfg:    cfg,
		store:  ts,
		client: client,
		logger: logging.NewLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RefreshAgencyToken exchanges the stored refresh token for a new agency
// token and persists the full replacement record. Persisted state is left
// untouched on any failure.
func (s *TokenService) RefreshAgencyToken(ctx context.Context) (*models.AgencyToken, error) {
	prior, err := s.store.LoadAgencyToken()
	if err != nil {
		return nil, &errors.ErrMissingConfig{
			Field:  "agency token",
			Reason: "run the manual authorization flow once to create the token record",
		}
	}
	if prior.RefreshToken == "" {
		return nil, &errors.ErrMissingConfig{Field: "refresh_token", Reason: "stored agency token has no refresh token"}
	}
	if s.cfg.ClientID == "" || s.cfg.ClientSecret == "" {
		return nil, &errors.ErrMissingConfig{Field: "client_id/client_secret"}
	}

	userType := prior.UserType
	if userType == "" {
		userType = defaultUserType
	}

	token, err := s.client.RefreshToken(ctx, s.cfg.ClientID, s.cfg.ClientSecret, prior.RefreshToken, userType)
	if err != nil {
		return nil, err
	}

	now := s.now()
	token.RefreshedAtUnix = now.Unix()
	token.RefreshedAtReadable = now.Format("2006-01-02 15:04:05")
	if token.CompanyID == "" {
		token.CompanyID = prior.CompanyID
	}
	if token.UserType == "" {
		token.UserType = prior.UserType
	}

	if err := s.store.SaveAgencyToken(token); err != nil {
		return nil, err
	}

	s.logger.InfoWithContext(ctx, "agency token refreshed", "company_id", token.CompanyID)
	return token, nil
}

// SyncInstalledLocations lists every sub-account with the app installed and
// persists the full replacement sequence, dropping stale entries.
func (s *TokenService) SyncInstalledLocations(ctx context.Context) ([]models.Location, error) {
	agency, err := s.loadAgencyAccess()
	if err != nil {
		return nil, err
	}
	if s.cfg.CompanyID == "" || s.cfg.AppID == "" {
		return nil, &errors.ErrMissingConfig{Field: "company_id/app_id"}
	}

	locations, err := s.client.InstalledLocations(ctx, agency.AccessToken, s.cfg.CompanyID, s.cfg.AppID)
	if err != nil {
		return nil, err
	}

	if err := s.store.SaveLocations(locations); err != nil {
		return nil, err
	}

	s.logger.InfoWithContext(ctx, "installed locations synced", "count", len(locations))
	return locations, nil
}

// ProvisionLocationTokens exchanges the agency token for a location-scoped
// token per entry. Failures are recorded on the entry and never abort the
// batch; one bad location must not block provisioning of the rest.
func (s *TokenService) ProvisionLocationTokens(ctx context.Context) ([]models.Location, error) {
	agency, err := s.loadAgencyAccess()
	if err != nil {
		return nil, err
	}

	locations, err := s.store.LoadLocations()
	if err != nil {
		return nil, &errors.ErrMissingConfig{Field: "locations record", Reason: "run the location sync stage first"}
	}

	failures := 0
	for i := range locations {
		loc := &locations[i]

		if loc.ID == "" {
			loc.SetTokenError(models.ErrorRecord{Error: "location id not found in record"})
			s.metrics.RecordLocationTokenError()
			failures++
			continue
		}

		body, err := s.client.LocationToken(ctx, agency.AccessToken, agency.CompanyID, loc.ID)
		if err != nil {
			loc.SetTokenError(errorRecordFor(err))
			s.metrics.RecordLocationTokenError()
			s.logger.WarnWithContext(ctx, "location token exchange failed", "location_id", loc.ID, "error", err.Error())
			failures++
			continue
		}

		loc.SetTokenData(body)
	}

	if err := s.store.SaveLocations(locations); err != nil {
		return nil, err
	}

	s.logger.InfoWithContext(ctx, "location tokens provisioned",
		"count", len(locations),
		"failures", failures,
	)
	return locations, nil
}

func (s *TokenService) loadAgencyAccess() (*models.AgencyToken, error) {
	agency, err := s.store.LoadAgencyToken()
	if err != nil || agency.AccessToken == "" {
		return nil, &errors.ErrMissingConfig{Field: "agency access token", Reason: "run the token refresh stage first"}
	}
	if agency.CompanyID == "" {
		agency.CompanyID = s.cfg.CompanyID
	}
	return agency, nil
}

func errorRecordFor(err error) models.ErrorRecord {
	var remote *errors.ErrRemote
	if stderrors.As(err, &remote) {
		return models.ErrorRecord{
			Error:      fmt.Sprintf("token exchange returned status %d", remote.StatusCode),
			StatusCode: remote.StatusCode,
			Details:    remote.Body,
		}
	}
	return models.ErrorRecord{Error: err.Error()}
}
