package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/mailout/internal/mailerr"
)

var envKeys = []string{
	"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASS", "SMTP_SECURE",
	"GMAIL_SENDER", "GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "GOOGLE_REDIRECT_URI",
	"GOOGLE_REDIRECT_PORT", "GOOGLE_TOKEN_PATH", "GOOGLE_AUTH_TIMEOUT",
	"MAILOUT_TRANSPORT", "USE_SMTP_FALLBACK", "AWS_REGION", "SES_SENDER", "SES_ACCESS_KEY_ID", "SES_SECRET_ACCESS_KEY",
	"SMTP_DKIM_SELECTOR", "SMTP_DKIM_DOMAIN", "SMTP_DKIM_KEY_PATH", "SMTP_DKIM_PRIVATE_KEY",
	"LOG_LEVEL", "LOG_FORMAT", "TO_EMAIL", "FROM_EMAIL", "SUBJECT", "TEXT", "HTML",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

const coreConfig = `
smtp:
  host: smtp.example.com
  port: "465"
  user: mailer@example.com
  password: secret
  security: ssl
gmailApi:
  sender: ops@example.com
transport:
  fallback: smtp
google:
  authTimeout: 90s
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, TransportGmail, cfg.Transport.Primary)
	assert.Equal(t, TransportSMTP, cfg.Transport.Fallback)
	assert.False(t, cfg.Transport.UseFallback)
	assert.Equal(t, DefaultAuthTimeout, cfg.Google.AuthTimeout)
	assert.Equal(t, DefaultTokenPath(), cfg.Google.TokenPath)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.SMTPConfigured())
}

func TestLoad_DefaultPathFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, DefaultConfigPath, coreConfig)
	t.Chdir(dir)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com", cfg.SMTP.Host)
	assert.Equal(t, Port(465), cfg.SMTP.Port)
	assert.Equal(t, "mailer@example.com", cfg.SMTP.User)
	assert.Equal(t, "secret", cfg.SMTP.Password)
	assert.Equal(t, SecuritySSL, cfg.SMTP.Security)
	assert.Equal(t, "ops@example.com", cfg.GmailAPI.Sender)
	assert.Equal(t, 90*time.Second, cfg.Google.AuthTimeout)
	assert.True(t, cfg.SMTPConfigured())
	assert.NoError(t, cfg.ValidateSMTP())
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, mailerr.ErrConfiguration)
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, t.TempDir(), "bad.yaml", "smtp: [unclosed")
	_, err := Load(path)
	assert.ErrorIs(t, err, mailerr.ErrConfiguration)

	path = writeFile(t, t.TempDir(), "badport.yaml", "smtp:\n  port: abc\n")
	_, err = Load(path)
	assert.ErrorIs(t, err, mailerr.ErrConfiguration)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, t.TempDir(), "core.yaml", coreConfig)

	t.Setenv("SMTP_HOST", "relay.internal")
	t.Setenv("SMTP_PORT", "587")
	t.Setenv("GMAIL_SENDER", "alias@example.com")
	t.Setenv("GOOGLE_CLIENT_ID", "id.apps.googleusercontent.com")
	t.Setenv("GOOGLE_CLIENT_SECRET", "shh")
	t.Setenv("GOOGLE_REDIRECT_PORT", "8765")
	t.Setenv("GOOGLE_TOKEN_PATH", "/tmp/token.json")
	t.Setenv("GOOGLE_AUTH_TIMEOUT", "2m")
	t.Setenv("USE_SMTP_FALLBACK", "TRUE")
	t.Setenv("MAILOUT_TRANSPORT", "SES")
	t.Setenv("TO_EMAIL", "ana@example.org")
	t.Setenv("SUBJECT", "Hi")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "relay.internal", cfg.SMTP.Host)
	assert.Equal(t, Port(587), cfg.SMTP.Port)
	assert.Equal(t, "alias@example.com", cfg.GmailAPI.Sender)
	assert.Equal(t, 8765, cfg.Google.RedirectPort)
	assert.Equal(t, "/tmp/token.json", cfg.Google.TokenPath)
	assert.Equal(t, 2*time.Minute, cfg.Google.AuthTimeout)
	assert.True(t, cfg.Transport.UseFallback)
	assert.Equal(t, TransportSES, cfg.Transport.Primary)
	assert.Equal(t, "ana@example.org", cfg.Defaults.To)
	assert.Equal(t, "Hi", cfg.Defaults.Subject)
	assert.NoError(t, cfg.ValidateGoogle())
}

func TestLoad_SMTPSecure(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("SMTP_SECURE", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, SecuritySSL, cfg.SMTP.Security)
}

func TestLoad_InvalidEnv(t *testing.T) {
	for key, value := range map[string]string{
		"SMTP_PORT":            "smtp",
		"GOOGLE_REDIRECT_PORT": "70000",
		"GOOGLE_AUTH_TIMEOUT":  "forever",
	} {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Chdir(t.TempDir())
			t.Setenv(key, value)

			_, err := Load("")
			assert.ErrorIs(t, err, mailerr.ErrConfiguration)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, ".env", "SMTP_HOST=from-dotenv\nSMTP_USER=dotenv-user\n")
	t.Setenv("SMTP_USER", "from-process")
	// godotenv treats a set-but-empty variable as present.
	require.NoError(t, os.Unsetenv("SMTP_HOST"))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-dotenv", os.Getenv("SMTP_HOST"))
	assert.Equal(t, "from-process", os.Getenv("SMTP_USER"), ".env must not override the environment")

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "absent.env")))
}

func TestValidateSMTP(t *testing.T) {
	tests := []struct {
		name string
		smtp SMTPConfig
		want string
	}{
		{"missing host", SMTPConfig{Port: 587}, "host"},
		{"missing port", SMTPConfig{Host: "h"}, "port"},
		{"bad security", SMTPConfig{Host: "h", Port: 25, Security: "TLS1.3"}, "security"},
		{"password without user", SMTPConfig{Host: "h", Port: 25, Password: "p"}, "user"},
		{"ok starttls", SMTPConfig{Host: "h", Port: 587, Security: SecuritySTARTTLS, User: "u", Password: "p"}, ""},
		{"ok plain", SMTPConfig{Host: "h", Port: 25}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{SMTP: tt.smtp}
			err := cfg.ValidateSMTP()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, mailerr.ErrConfiguration)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateGoogle(t *testing.T) {
	cfg := &Config{Google: GoogleConfig{ClientID: "id"}}
	err := cfg.ValidateGoogle()
	require.Error(t, err)
	assert.ErrorIs(t, err, mailerr.ErrAuth)
}

func TestValidateSES(t *testing.T) {
	cfg := &Config{}
	assert.ErrorIs(t, cfg.ValidateSES(), mailerr.ErrConfiguration)
	cfg.SES.Region = "eu-west-1"
	assert.NoError(t, cfg.ValidateSES())
}

func TestDKIMEnabled(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.DKIMEnabled())
	cfg.DKIM.Selector = "s1"
	assert.True(t, cfg.DKIMEnabled())
}

func TestValidate(t *testing.T) {
	cfg := &Config{Transport: TransportConfig{Primary: TransportGmail, Fallback: TransportSMTP}}
	assert.NoError(t, cfg.Validate())

	cfg.Transport.Primary = "pigeon"
	assert.ErrorIs(t, cfg.Validate(), mailerr.ErrConfiguration)

	cfg.Transport.Primary = TransportStdout
	cfg.Transport.Fallback = "fax"
	assert.ErrorIs(t, cfg.Validate(), mailerr.ErrConfiguration)
}
