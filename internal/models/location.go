package models

import "encoding/json"

// tokenDataKey is the field the token manager writes into each persisted
// location entry.
const tokenDataKey = "location_specific_token_data"

// ErrorRecord replaces a location's token data when the exchange fails.
// The batch keeps going; the failure stays visible in the persisted record.
type ErrorRecord struct {
	Error      string `json:"error"`
	StatusCode int    `json:"status_code,omitempty"`
	Details    string `json:"details,omitempty"`
}

// Location is one sub-account with the app installed. Everything the
// enumeration endpoint returned is carried opaquely in Raw, so the
// full-replacement writes never drop metadata this program does not model.
// TokenData holds either the verbatim token-exchange response or a
// marshalled ErrorRecord.
type Location struct {
	ID        string
	Raw       map[string]json.RawMessage
	TokenData json.RawMessage
}

// NewLocation builds a minimal location record carrying only an id.
// Enumeration responses produce richer records via UnmarshalJSON.
func NewLocation(id string) Location {
	raw := map[string]json.RawMessage{
		"_id": mustRaw(id),
	}
	return Location{ID: id, Raw: raw}
}

func mustRaw(v interface{}) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

// UnmarshalJSON keeps every field opaque and resolves the id from "_id"
// falling back to "id", mirroring the remote API's two shapes.
func (l *Location) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	l.TokenData = raw[tokenDataKey]
	delete(raw, tokenDataKey)
	l.Raw = raw

	l.ID = rawString(raw, "_id")
	if l.ID == "" {
		l.ID = rawString(raw, "id")
	}
	return nil
}

// MarshalJSON writes the opaque fields back plus the token data, if any.
func (l Location) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(l.Raw)+1)
	for k, v := range l.Raw {
		out[k] = v
	}
	if l.TokenData != nil {
		out[tokenDataKey] = l.TokenData
	}
	return json.Marshal(out)
}

// SetTokenData attaches a verbatim token-exchange response.
func (l *Location) SetTokenData(body json.RawMessage) {
	l.TokenData = body
}

// SetTokenError attaches an ErrorRecord in place of token data.
func (l *Location) SetTokenError(rec ErrorRecord) {
	l.TokenData = mustRaw(rec)
}

// AccessToken returns the location-scoped access token, or "" when the
// exchange failed or has not run yet.
func (l *Location) AccessToken() string {
	if len(l.TokenData) == 0 {
		return ""
	}
	var parsed struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(l.TokenData, &parsed); err != nil {
		return ""
	}
	return parsed.AccessToken
}

// TokenError returns the attached ErrorRecord, or nil when the location
// holds a valid token or no token data at all.
func (l *Location) TokenError() *ErrorRecord {
	if len(l.TokenData) == 0 {
		return nil
	}
	var rec ErrorRecord
	if err := json.Unmarshal(l.TokenData, &rec); err != nil {
		return nil
	}
	if rec.Error == "" {
		return nil
	}
	return &rec
}

func rawString(raw map[string]json.RawMessage, key string) string {
	v, ok := raw[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return ""
	}
	return s
}
