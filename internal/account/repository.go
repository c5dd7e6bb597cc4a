package account

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"titancore/internal/apperr"
	"titancore/internal/crypto"
	"titancore/internal/db"
)

// Repository is the account table's data access layer, built on the
// gateway's pooled DatabaseHandle rather than a direct *sql.DB so every
// query shares the same connection/statement-cache discipline as the auth
// handler.
type Repository struct {
	handle *db.DatabaseHandle
}

// NewRepository wraps handle as an account Repository.
func NewRepository(handle *db.DatabaseHandle) *Repository {
	return &Repository{handle: handle}
}

// Create inserts a new account with its SRP6 salt/verifier and back-fills
// a realmcharacters row for every known realm, all within one transaction.
func (r *Repository) Create(ctx context.Context, username, email, regMail string, salt crypto.Salt, verifier crypto.PasswordVerifier) (Account, error) {
	username = strings.ToUpper(username)
	var created Account

	err := r.handle.Transaction(ctx, func(tx *db.TransactionContext) error {
		var exists int
		err := tx.QueryScalar(ctx, &exists,
			"SELECT COUNT(*) FROM account WHERE username = ?", username)
		if err != nil {
			return err
		}
		if exists > 0 {
			return apperr.Conflict("an account with this username already exists")
		}

		joinDate := time.Now()
		_, err = tx.Execute(ctx,
			`INSERT INTO account (username, salt, verifier, email, reg_mail, joindate)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			username, salt.ToBytesLE(), verifier.ToBytesLE(), email, regMail, joinDate)
		if err != nil {
			return err
		}

		var id int64
		if err := tx.QueryScalar(ctx, &id, "SELECT id FROM account WHERE username = ?", username); err != nil {
			return err
		}

		rows, err := tx.Query(ctx, "SELECT id FROM realmlist")
		if err != nil {
			return err
		}
		var realmIDs []int64
		for rows.Next() {
			var realmID int64
			if scanErr := rows.Scan(&realmID); scanErr != nil {
				rows.Close()
				return apperr.Query("scanning realmlist", scanErr)
			}
			realmIDs = append(realmIDs, realmID)
		}
		if closeErr := rows.Err(); closeErr != nil {
			rows.Close()
			return apperr.Query("iterating realmlist", closeErr)
		}
		rows.Close()

		for _, realmID := range realmIDs {
			if _, err := tx.Execute(ctx,
				"INSERT INTO realmcharacters (realm_id, acct_id, num_chars) VALUES (?, ?, 0)",
				realmID, id); err != nil {
				return err
			}
		}

		created = Account{
			ID:       id,
			Username: username,
			Salt:     salt,
			Verifier: verifier,
			Email:    email,
			RegMail:  regMail,
			JoinDate: joinDate,
		}
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	return created, nil
}

// FindByUsername looks up an account by its (case-insensitive) username.
// Returns an apperr ErrNotFound wrapped error when no account matches.
func (r *Repository) FindByUsername(ctx context.Context, username string) (Account, error) {
	username = strings.ToUpper(username)

	var (
		id            int64
		saltBytes     []byte
		verifierBytes []byte
		email         string
		regMail       string
		joinDate      time.Time
		sessionKey    []byte
	)

	rows, err := r.handle.Query(ctx,
		`SELECT id, salt, verifier, email, reg_mail, joindate, session_key
		 FROM account WHERE username = ?`, username)
	if err != nil {
		return Account{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		return Account{}, apperr.NotFoundf("no account named %s", username)
	}
	var sessionKeyNull sql.Null[[]byte]
	if err := rows.Scan(&id, &saltBytes, &verifierBytes, &email, &regMail, &joinDate, &sessionKeyNull); err != nil {
		return Account{}, apperr.Query("scanning account row", err)
	}
	if sessionKeyNull.Valid {
		sessionKey = sessionKeyNull.V
	}
	if err := rows.Err(); err != nil {
		return Account{}, apperr.Query("reading account row", err)
	}

	acct := Account{
		ID:       id,
		Username: username,
		Salt:     crypto.SaltFromBytesLE(saltBytes),
		Verifier: crypto.PasswordVerifierFromBytesLE(verifierBytes),
		Email:    email,
		RegMail:  regMail,
		JoinDate: joinDate,
	}
	if len(sessionKey) == 40 {
		k := crypto.SessionKeyFromBytesLE(sessionKey)
		acct.SessionKey = &k
	}
	return acct, nil
}

// SetSessionKey persists the session key derived from a completed logon or
// reconnect handshake, so a later reconnect handshake can find it again
// even across a gateway restart.
func (r *Repository) SetSessionKey(ctx context.Context, username string, key crypto.SessionKey) error {
	username = strings.ToUpper(username)
	_, err := r.handle.Execute(ctx,
		"UPDATE account SET session_key = ? WHERE username = ?",
		key.ToBytesLE(), username)
	return err
}
