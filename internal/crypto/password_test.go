package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("Sup3rSecret")
	require.NoError(t, err)
	assert.NotContains(t, hash, "Sup3rSecret")

	assert.NoError(t, CheckPassword("Sup3rSecret", hash))
	assert.ErrorIs(t, CheckPassword("WrongPassw0rd", hash), ErrPasswordMismatch)
}

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid", "Abcdef12", false},
		{"too short", "Ab1", true},
		{"too long", "A1" + strings.Repeat("a", 127), true},
		{"no upper", "abcdef12", true},
		{"no lower", "ABCDEF12", true},
		{"no digit", "Abcdefgh", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePassword(tc.password)
			if tc.wantErr {
				var policyErr *PolicyError
				assert.ErrorAs(t, err, &policyErr)
				// The reason must be human-readable and never echo the password.
				assert.NotContains(t, policyErr.Reason, tc.password)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
