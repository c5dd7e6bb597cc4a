// Package account implements the account record store backing both the
// auth gateway (salt/verifier lookup, session-key persistence) and the
// HTTP account-creation surface.
package account

import (
	"time"

	"titancore/internal/crypto"
)

// MaxUsernameLength is the longest account name the gateway will accept,
// matching the logon protocol's fixed-width display fields.
const MaxUsernameLength = 16

// MaxPasswordLength bounds the password accepted at account-creation time.
const MaxPasswordLength = 16

// Account is one row of the account table: identity plus the SRP6
// salt/verifier pair that stands in for a plaintext password.
type Account struct {
	ID         int64
	Username   string
	Salt       crypto.Salt
	Verifier   crypto.PasswordVerifier
	Email      string
	RegMail    string
	JoinDate   time.Time
	SessionKey *crypto.SessionKey // nil until a successful logon persists one
}
