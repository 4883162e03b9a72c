package auth

import "time"

// Issuer mints signed bearer tokens for authenticated users. It
// satisfies the token-issuer contract of the goals service.
type Issuer struct {
	TTL time.Duration
}

func (i Issuer) Issue(userID string) (string, error) {
	ttl := i.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return GenerateToken(userID, ttl)
}
