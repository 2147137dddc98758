package model

import "time"

// CredentialEntry holds an owner's delegated storage credentials.
type CredentialEntry struct {
	OwnerID         string    `json:"owner_id"`
	AccessToken     string    `json:"access_token"`
	RefreshToken    string    `json:"refresh_token"`
	IssuedAt        time.Time `json:"issued_at"`
	ValidForSeconds int64     `json:"valid_for_seconds"`
}

// FreshAt reports whether the access token may still be used at now, keeping
// margin in reserve so a token does not lapse mid-request.
func (e *CredentialEntry) FreshAt(now time.Time, margin time.Duration) bool {
	if e.AccessToken == "" {
		return false
	}
	validFor := time.Duration(e.ValidForSeconds) * time.Second
	return now.Sub(e.IssuedAt) < validFor-margin
}
