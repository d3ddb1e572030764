package domain

import "strings"

// DefaultPitchlyOrigin is the API base URL used when a service configuration
// does not override it.
const DefaultPitchlyOrigin = "https://platform.pitchly.com"

// ServiceConfig holds the Pitchly provider configuration, one row per
// service. Secret is stored sealed and decrypted only at point of use.
type ServiceConfig struct {
	Service          string   `bson:"service"`
	ClientID         string   `bson:"clientId"`
	Secret           string   `bson:"secret"`
	Origin           string   `bson:"origin,omitempty"`
	AccessTokenScope []string `bson:"accessTokenScope,omitempty"`
}

// OriginOrDefault returns the configured API base URL, falling back to the
// platform default.
func (c *ServiceConfig) OriginOrDefault() string {
	if c.Origin != "" {
		return c.Origin
	}
	return DefaultPitchlyOrigin
}

// ScopeParam renders the configured scope list as a single space-joined
// request parameter. Empty when no scope is configured.
func (c *ServiceConfig) ScopeParam() string {
	return strings.Join(c.AccessTokenScope, " ")
}
