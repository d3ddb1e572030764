package domain

import "time"

// PitchlyAccount is the per-user Pitchly service sub-record, stored at
// services.pitchly on the user document. Token fields hold sealed values;
// profile fields mirror the provider and are best-effort fresh.
type PitchlyAccount struct {
	ID             string `bson:"id,omitempty"`
	Name           string `bson:"name,omitempty"`
	Email          string `bson:"email,omitempty"`
	Picture        string `bson:"picture,omitempty"`
	OrganizationID string `bson:"organizationId,omitempty"`

	// AccessToken is the sealed bearer credential for Pitchly API calls.
	AccessToken string `bson:"accessToken,omitempty"`
	// AccessTokenExpiresAt is an epoch-millisecond expiry estimate, derived
	// as exchangeTime + expires_in*1000. It is not authoritative.
	AccessTokenExpiresAt int64 `bson:"accessTokenExpiresAt,omitempty"`
	// RefreshToken is the sealed long-lived credential. It never leaves the
	// server.
	RefreshToken string `bson:"refreshToken,omitempty"`
	// UpdatedAt is the epoch-millisecond timestamp of the last successful
	// mutation of this sub-record, token or profile.
	UpdatedAt int64 `bson:"updatedAt,omitempty"`
}

// UserServices groups external login service sub-records.
type UserServices struct {
	Pitchly *PitchlyAccount `bson:"pitchly,omitempty"`
}

// User represents a user account. This package only ever mutates the
// services.pitchly sub-record; everything else belongs to the account store.
type User struct {
	ID        string       `bson:"_id,omitempty"`
	CreatedAt time.Time    `bson:"created_at"`
	Services  UserServices `bson:"services"`
}

// PitchlyTokens is the token set persisted atomically after a successful
// exchange. All four fields are written together or not at all.
type PitchlyTokens struct {
	AccessToken          string
	AccessTokenExpiresAt int64
	RefreshToken         string
	UpdatedAt            int64
}

// PitchlyProfile carries the provider-sourced profile fields written by the
// best-effort sync after a refresh.
type PitchlyProfile struct {
	Name      string
	Email     string
	Picture   string
	UpdatedAt int64
}
