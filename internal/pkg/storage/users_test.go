package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fotohosting/fotohost/internal/pkg/config"
)

func TestEmailPattern(t *testing.T) {
	valid := []string{
		"bob@mail.com",
		"a.b+c_1%d@sub.domain.org",
		"admin@example.com",
	}
	for _, email := range valid {
		assert.True(t, emailPattern.MatchString(email), email)
	}

	invalid := []string{
		"",
		"noat",
		"a@b",
		"a b@mail.com",
		"../../etc",
		"../../x@mail.com",
		"a/b@mail.com",
		`a\b@mail.com`,
		"@mail.com",
	}
	for _, email := range invalid {
		assert.False(t, emailPattern.MatchString(email), email)
	}
}

func TestRegisterUserRejectsUnsafeEmail(t *testing.T) {
	// Validation runs before any connection is borrowed, so a bare handle
	// is enough here.
	db := &DB{cfg: &config.Config{}}

	for _, email := range []string{"../../etc", "uploads/../../x", "not-an-email"} {
		ok, msg := db.RegisterUser(context.Background(), email, "secret")
		assert.False(t, ok, email)
		assert.Equal(t, "invalid email address", msg)
	}
}
