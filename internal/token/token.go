// Package token issues the opaque single-use tokens backing the email
// verification and password reset flows.
package token

import (
	"time"

	"github.com/google/uuid"
)

// Issuer produces unguessable tokens and their expiry timestamps. Now
// is swappable so tests can pin the clock.
type Issuer struct {
	Now func() time.Time
}

func NewIssuer() *Issuer {
	return &Issuer{Now: time.Now}
}

// Issue returns a fresh opaque token. UUIDv4 carries 122 bits from
// crypto/rand, enough to make collisions and guessing negligible.
func (i *Issuer) Issue() string {
	return uuid.NewString()
}

func (i *Issuer) ExpiryFor(d time.Duration) time.Time {
	return i.Now().Add(d)
}
