package models

// AgencyToken is the agency-level OAuth grant for the LeadConnector app.
// It is fully replaced on every successful refresh; the two refreshed_at
// stamps are added locally and never come from the API.
type AgencyToken struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	UserType     string `json:"userType,omitempty"`
	CompanyID    string `json:"companyId,omitempty"`
	LocationID   string `json:"locationId,omitempty"`
	UserID       string `json:"userId,omitempty"`
	PlanID       string `json:"planId,omitempty"`

	RefreshedAtUnix     int64  `json:"refreshed_at_unix_timestamp,omitempty"`
	RefreshedAtReadable string `json:"refreshed_at_readable,omitempty"`
}

// CustomValue is a named key-value field on a location. The id is assigned
// remotely and never cached locally; lookup is always by name.
type CustomValue struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	FieldKey string `json:"fieldKey,omitempty"`
	Value    string `json:"value,omitempty"`
}
