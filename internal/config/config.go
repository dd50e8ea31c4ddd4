package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/teemow/mailout/internal/mailerr"
)

// DefaultConfigPath is the core config location relative to the working directory.
var DefaultConfigPath = filepath.Join("bmad-core", "core-config.yaml")

// DefaultAuthTimeout bounds the interactive authorization flow.
const DefaultAuthTimeout = 5 * time.Minute

// SMTP security modes.
const (
	SecuritySSL      = "SSL"
	SecuritySTARTTLS = "STARTTLS"
	SecurityNone     = ""
)

// Transport names.
const (
	TransportGmail  = "gmail"
	TransportSMTP   = "smtp"
	TransportSES    = "ses"
	TransportStdout = "stdout"
)

// Config holds the complete application configuration.
type Config struct {
	SMTP      SMTPConfig      `yaml:"smtp"`
	GmailAPI  GmailAPIConfig  `yaml:"gmailApi"`
	Google    GoogleConfig    `yaml:"google"`
	Transport TransportConfig `yaml:"transport"`
	SES       SESConfig       `yaml:"ses"`
	DKIM      DKIMConfig      `yaml:"dkim"`
	Logging   LoggingConfig   `yaml:"logging"`

	// Defaults are message fields supplied through the environment.
	Defaults MessageDefaults `yaml:"-"`
}

// SMTPConfig holds the authenticated relay used directly or as fallback.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     Port   `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	// Security is SSL (implicit TLS), STARTTLS or empty.
	Security string `yaml:"security"`
}

// GmailAPIConfig holds the Gmail sending identity.
type GmailAPIConfig struct {
	Sender string `yaml:"sender"`
}

// GoogleConfig holds the OAuth2 desktop client settings.
type GoogleConfig struct {
	ClientID     string        `yaml:"clientId"`
	ClientSecret string        `yaml:"clientSecret"`
	RedirectURI  string        `yaml:"redirectUri"`
	RedirectPort int           `yaml:"redirectPort"`
	TokenPath    string        `yaml:"tokenPath"`
	AuthTimeout  time.Duration `yaml:"authTimeout"`
}

// TransportConfig selects the primary transport and the fallback.
type TransportConfig struct {
	Primary     string `yaml:"primary"`
	Fallback    string `yaml:"fallback"`
	UseFallback bool   `yaml:"useFallback"`
}

// SESConfig holds the AWS SES settings.
// Static keys are optional; without them the default AWS credential chain
// applies.
type SESConfig struct {
	Region          string `yaml:"region"`
	Sender          string `yaml:"sender"`
	AccessKeyID     string `yaml:"accessKeyId"`
	SecretAccessKey string `yaml:"-"`
}

// DKIMConfig holds optional DKIM signing settings for SMTP submission.
type DKIMConfig struct {
	Selector   string `yaml:"selector"`
	Domain     string `yaml:"domain"`
	KeyPath    string `yaml:"keyPath"`
	PrivateKey string `yaml:"-"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MessageDefaults are fallbacks for message fields not given as flags.
type MessageDefaults struct {
	To      string
	From    string
	Subject string
	Text    string
	HTML    string
}

// Port is a TCP port that may be written as a number or a quoted string.
type Port int

// UnmarshalYAML accepts 587 as well as "587".
func (p *Port) UnmarshalYAML(node *yaml.Node) error {
	v := strings.TrimSpace(node.Value)
	if v == "" {
		*p = 0
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid port %q", node.Value)
	}
	*p = Port(n)
	return nil
}

// Load reads the core config at path and applies environment overrides.
// An empty path means DefaultConfigPath, which may be absent; an explicit
// path must exist.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, mailerr.Configuration("config.load", "failed to parse %s: %v", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, mailerr.Configuration("config.load", "failed to read %s: %v", path, err)
	}

	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from a .env file without overriding variables
// already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return mailerr.Configuration("config.dotenv", "failed to load %s: %v", path, err)
	}
	return nil
}

// DefaultTokenPath returns the credential cache location under the user's
// home directory.
func DefaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".mailout", "gmail_token.json")
}

func (c *Config) applyDefaults() {
	c.Transport.Primary = TransportGmail
	c.Transport.Fallback = TransportSMTP
	c.Google.AuthTimeout = DefaultAuthTimeout
	c.Logging.Level = "info"
	c.Logging.Format = "text"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() error {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	setString(&c.SMTP.Host, "SMTP_HOST")
	setString(&c.SMTP.User, "SMTP_USER")
	if v := os.Getenv("SMTP_PASS"); v != "" {
		c.SMTP.Password = v
	}
	if v := strings.TrimSpace(os.Getenv("SMTP_PORT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return mailerr.Configuration("config.env", "invalid SMTP_PORT %q", v)
		}
		c.SMTP.Port = Port(n)
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv("SMTP_SECURE")), "true") {
		c.SMTP.Security = SecuritySSL
	}
	c.SMTP.Security = strings.ToUpper(strings.TrimSpace(c.SMTP.Security))

	setString(&c.GmailAPI.Sender, "GMAIL_SENDER")

	setString(&c.Google.ClientID, "GOOGLE_CLIENT_ID")
	setString(&c.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	setString(&c.Google.RedirectURI, "GOOGLE_REDIRECT_URI")
	setString(&c.Google.TokenPath, "GOOGLE_TOKEN_PATH")
	if v := strings.TrimSpace(os.Getenv("GOOGLE_REDIRECT_PORT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 65535 {
			return mailerr.Configuration("config.env", "invalid GOOGLE_REDIRECT_PORT %q", v)
		}
		c.Google.RedirectPort = n
	}
	if v := strings.TrimSpace(os.Getenv("GOOGLE_AUTH_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return mailerr.Configuration("config.env", "invalid GOOGLE_AUTH_TIMEOUT %q", v)
		}
		c.Google.AuthTimeout = d
	}
	if c.Google.TokenPath == "" {
		c.Google.TokenPath = DefaultTokenPath()
	}

	setString(&c.Transport.Primary, "MAILOUT_TRANSPORT")
	if v := strings.TrimSpace(os.Getenv("USE_SMTP_FALLBACK")); v != "" {
		c.Transport.UseFallback = strings.EqualFold(v, "true")
	}
	c.Transport.Primary = strings.ToLower(c.Transport.Primary)
	c.Transport.Fallback = strings.ToLower(c.Transport.Fallback)

	setString(&c.SES.Region, "AWS_REGION")
	setString(&c.SES.Sender, "SES_SENDER")
	setString(&c.SES.AccessKeyID, "SES_ACCESS_KEY_ID")
	if v := os.Getenv("SES_SECRET_ACCESS_KEY"); v != "" {
		c.SES.SecretAccessKey = v
	}

	setString(&c.DKIM.Selector, "SMTP_DKIM_SELECTOR")
	setString(&c.DKIM.Domain, "SMTP_DKIM_DOMAIN")
	setString(&c.DKIM.KeyPath, "SMTP_DKIM_KEY_PATH")
	if v := os.Getenv("SMTP_DKIM_PRIVATE_KEY"); v != "" {
		c.DKIM.PrivateKey = v
	}

	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")

	setString(&c.Defaults.To, "TO_EMAIL")
	setString(&c.Defaults.From, "FROM_EMAIL")
	setString(&c.Defaults.Subject, "SUBJECT")
	if v := os.Getenv("TEXT"); v != "" {
		c.Defaults.Text = v
	}
	if v := os.Getenv("HTML"); v != "" {
		c.Defaults.HTML = v
	}
	return nil
}

// SMTPConfigured reports whether an SMTP relay is available.
func (c *Config) SMTPConfigured() bool {
	return c.SMTP.Host != "" && c.SMTP.Port != 0
}

// ValidateSMTP reports the first missing SMTP setting.
func (c *Config) ValidateSMTP() error {
	switch {
	case c.SMTP.Host == "":
		return mailerr.Configuration("config.smtp", "smtp host is required (smtp.host or SMTP_HOST)")
	case c.SMTP.Port <= 0 || c.SMTP.Port > 65535:
		return mailerr.Configuration("config.smtp", "smtp port is required (smtp.port or SMTP_PORT)")
	}
	switch c.SMTP.Security {
	case SecuritySSL, SecuritySTARTTLS, SecurityNone:
	default:
		return mailerr.Configuration("config.smtp", "unknown smtp security %q (use SSL or STARTTLS)", c.SMTP.Security)
	}
	if c.SMTP.Password != "" && c.SMTP.User == "" {
		return mailerr.Configuration("config.smtp", "smtp user is required when a password is set")
	}
	return nil
}

// ValidateGoogle reports missing OAuth2 application credentials.
func (c *Config) ValidateGoogle() error {
	if c.Google.ClientID == "" || c.Google.ClientSecret == "" {
		return mailerr.Auth("config.google", errors.New("missing GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET; create an OAuth desktop client in Google Cloud and set both"))
	}
	return nil
}

// ValidateSES reports missing SES settings.
func (c *Config) ValidateSES() error {
	if c.SES.Region == "" {
		return mailerr.Configuration("config.ses", "ses region is required (ses.region or AWS_REGION)")
	}
	return nil
}

// DKIMEnabled reports whether any DKIM setting is present.
func (c *Config) DKIMEnabled() bool {
	return c.DKIM.Selector != "" || c.DKIM.KeyPath != "" || c.DKIM.PrivateKey != "" || c.DKIM.Domain != ""
}

// Validate checks the transport selection.
func (c *Config) Validate() error {
	if !knownTransport(c.Transport.Primary) {
		return mailerr.Configuration("config.validate", "unknown transport %q (use gmail, smtp, ses or stdout)", c.Transport.Primary)
	}
	if c.Transport.Fallback != "" && !knownTransport(c.Transport.Fallback) {
		return mailerr.Configuration("config.validate", "unknown fallback transport %q", c.Transport.Fallback)
	}
	return nil
}

func knownTransport(name string) bool {
	switch name {
	case TransportGmail, TransportSMTP, TransportSES, TransportStdout:
		return true
	}
	return false
}
