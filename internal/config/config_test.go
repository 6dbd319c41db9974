package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:                   "development",
		JWTSecret:             "secure-secret-at-least-32-chars-long",
		DBPassword:            "secure-password",
		DBSSLMode:             "require",
		Port:                  "8080",
		PushProvider:          "log",
		AttachmentMaxUploadMB: 10,
	}
}

func TestConfig_ValidateSSLMode(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		sslMode     string
		expectError bool
	}{
		{"Production with empty SSL mode", "production", "", true},
		{"Production with disable SSL mode", "production", "disable", true},
		{"Production with require SSL mode", "production", "require", false},
		{"Prod with verify-full SSL mode", "prod", "verify-full", false},
		{"Development with disable SSL mode", "development", "disable", false},
		{"Test with empty SSL mode", "test", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = tt.env
			c.DBSSLMode = tt.sslMode

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidatePushProvider(t *testing.T) {
	c := validConfig()
	c.PushProvider = "fcm"
	assert.Error(t, c.Validate(), "fcm without credentials must fail")

	c.FCMProjectID = "huddle-dev"
	c.FCMCredentialsFile = "/etc/huddle/fcm.json"
	assert.NoError(t, c.Validate())

	c.PushProvider = "carrier-pigeon"
	assert.Error(t, c.Validate())
}

func TestConfig_ValidateProductionSecrets(t *testing.T) {
	c := validConfig()
	c.Env = "production"
	c.JWTSecret = defaultJWTSecret
	assert.Error(t, c.Validate())

	c.JWTSecret = "short"
	assert.Error(t, c.Validate())

	c.JWTSecret = "secure-secret-at-least-32-chars-long"
	c.DBPassword = "password"
	assert.Error(t, c.Validate())
}

func TestLoadConfig_NormalizesEnvValues(t *testing.T) {
	defer os.Unsetenv("APP_ENV")
	defer os.Unsetenv("DB_SSLMODE")
	defer os.Unsetenv("PUSH_PROVIDER")
	defer viper.Reset()

	os.Setenv("APP_ENV", "development")
	os.Setenv("DB_SSLMODE", "  DISABLE  ")
	os.Setenv("PUSH_PROVIDER", " LOG ")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, "log", c.PushProvider)
	assert.Equal(t, 4, c.PushWorkers)
	assert.False(t, c.IsProduction())
}

func TestConfig_AdminEmailList(t *testing.T) {
	c := validConfig()
	assert.Empty(t, c.AdminEmailList())

	c.AdminEmails = " Ops@Example.com, ,root@example.com "
	assert.Equal(t, []string{"ops@example.com", "root@example.com"}, c.AdminEmailList())
}
