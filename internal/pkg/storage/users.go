package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log"
	"regexp"

	"github.com/lib/pq"
)

// emailPattern gates registration input. Besides basic shape it keeps path
// separators and whitespace out of emails, which double as on-disk folder
// names for uploads.
var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// hashPassword - one-way digest of a password. The hex encoded sha256 form
// is part of the stored wire format; changing it would invalidate every
// existing account.
func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// RegisterUser creates a new account. The (ok, message) pair is the contract
// with the web layer: store level errors never leak past this function.
// Registration with a configured administrator email is only allowed when
// the supplied password matches the configured admin password.
func (db *DB) RegisterUser(ctx context.Context, email, password string) (bool, string) {
	if !emailPattern.MatchString(email) {
		return false, "invalid email address"
	}
	if db.cfg.IsAdmin(email) {
		if db.cfg.AdminPassword == "" {
			return false, "configuration error: admin password is not set"
		}
		if password != db.cfg.AdminPassword {
			return false, "wrong login or password for admin registration"
		}
	}

	var ok bool
	var msg string
	err := db.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		var existing string
		err := conn.QueryRowContext(ctx,
			"SELECT email FROM users WHERE email = $1", email).Scan(&existing)
		if err == nil {
			msg = "user with this email already exists"
			return nil
		}
		if err != sql.ErrNoRows {
			return err
		}

		_, err = conn.ExecContext(ctx,
			"INSERT INTO users (email, password_hash) VALUES ($1, $2)",
			email, hashPassword(password))
		if err != nil {
			// Lost the race with a concurrent registration.
			if pqerr, isPq := err.(*pq.Error); isPq && pqerr.Code.Name() == "unique_violation" {
				msg = "user with this email already exists"
				return nil
			}
			return err
		}
		ok = true
		msg = "registration successful"
		return nil
	})
	if err != nil {
		log.Printf("ERROR: failed to register user - %v", err)
		return false, fmt.Sprintf("registration error: %v", err)
	}
	return ok, msg
}

// AuthenticateUser checks credentials against the stored digest.
func (db *DB) AuthenticateUser(ctx context.Context, email, password string) (bool, string) {
	var storedHash string
	err := db.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		return conn.QueryRowContext(ctx,
			"SELECT password_hash FROM users WHERE email = $1", email).Scan(&storedHash)
	})
	if err == sql.ErrNoRows {
		return false, "user with this email is not registered"
	}
	if err != nil {
		log.Printf("ERROR: failed to authenticate user - %v", err)
		return false, "database connection error"
	}

	if storedHash != hashPassword(password) {
		return false, "wrong password"
	}
	return true, "authentication successful"
}

// GetUser fetches one account, nil when absent.
func (db *DB) GetUser(ctx context.Context, email string) (*User, error) {
	var user User
	err := db.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		return conn.QueryRowContext(ctx,
			"SELECT email, password_hash, created_at FROM users WHERE email = $1", email).
			Scan(&user.Email, &user.PasswordHash, &user.CreatedAt)
	})
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser removes an account; owned images go with it via the ON DELETE
// CASCADE constraint, statistics rows deliberately survive.
func (db *DB) DeleteUser(ctx context.Context, email string) error {
	return db.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, "DELETE FROM users WHERE email = $1", email)
		return err
	})
}

// userExists is the referential pre-check used before attaching rows to an
// owner.
func userExists(ctx context.Context, conn *sql.Conn, email string) (bool, error) {
	var found string
	err := conn.QueryRowContext(ctx,
		"SELECT email FROM users WHERE email = $1", email).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
