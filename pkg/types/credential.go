package types

import (
	"sort"
	"strings"
	"time"
)

// AccessCredential is the caller-owned OAuth session. It is never persisted.
type AccessCredential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	Scope        []string  `json:"scope,omitempty"`
}

// expirySkew renews slightly before the provider's deadline.
const expirySkew = 10 * time.Second

// Fresh reports whether the access token can be used without renewal.
// A zero expiry is treated as unknown and therefore fresh.
func (c AccessCredential) Fresh(now time.Time) bool {
	if c.AccessToken == "" {
		return false
	}
	if c.Expiry.IsZero() {
		return true
	}
	return now.Add(expirySkew).Before(c.Expiry)
}

// ExpiresIn returns the remaining lifetime in whole seconds, or 0 if unknown.
func (c AccessCredential) ExpiresIn(now time.Time) int {
	if c.Expiry.IsZero() {
		return 0
	}
	d := c.Expiry.Sub(now)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

// ParseScope splits a space separated scope string into a sorted set.
func ParseScope(scope string) []string {
	seen := make(map[string]struct{})
	for _, s := range strings.Fields(scope) {
		seen[s] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
