package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePassword(t *testing.T) {
	t.Parallel()
	tests := []struct {
		password string
		wantErr  string
	}{
		{"CorrectHorse9!", ""},
		{"Abcdefghij1!", ""},
		{"Å" + strings.Repeat("x", 10) + "7?", ""},
		{"A" + strings.Repeat("b", 125) + "1!", ""},
		{"Short1!x", "at least 12 characters"},
		{"A" + strings.Repeat("b", 126) + "1!", "must not exceed 128"},
		{"correcthorse9!", "uppercase"},
		{"CORRECTHORSE9!", "lowercase"},
		{"CorrectHorse!!", "digit"},
		{"CorrectHorse99", "special character"},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateUsernameShape(t *testing.T) {
	t.Parallel()
	tests := []struct {
		username string
		wantErr  string
	}{
		{"trail_runner", ""},
		{"meetup-host-7", ""},
		{"ab", "at least 3"},
		{strings.Repeat("u", 31), "must not exceed 30"},
		{"ana.b", "letters, numbers"},
		{"-ana", "cannot start or end"},
		{"ana_", "cannot start or end"},
	}

	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateEmail(t *testing.T) {
	t.Parallel()
	longest := strings.Repeat("a", 64) + "@" + strings.Repeat("b", 185) + ".com"

	valid := []string{"organiser@huddle.app", "first.last+events@mail.example.org", longest}
	for _, email := range valid {
		assert.NoError(t, ValidateEmail(email), email)
	}

	invalid := []string{"huddle", "user@", "user@@huddle.app", "us er@huddle.app", "user@huddle.app.", longest + "m"}
	for _, email := range invalid {
		assert.Error(t, ValidateEmail(email), email)
	}
}
