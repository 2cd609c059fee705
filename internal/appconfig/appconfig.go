package appconfig

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v2"
)

// Config holds all configuration details
type Config struct {
	Host      string          `yaml:"host"`
	BasePath  string          `yaml:"basePath"`
	DocsPath  string          `yaml:"docsPath"`
	Portal    PortalConfig    `yaml:"portal"`
	Accounts  AccountsConfig  `yaml:"accounts"`
	Database  DatabaseConfig  `yaml:"database"`
	Pulsar    PulsarConfig    `yaml:"pulsar"`
	Directory DirectoryConfig `yaml:"directory"`
	AWS       AWSConfig       `yaml:"aws"`
}

// PortalConfig defines the public address and session settings of the portal
type PortalConfig struct {
	URL           string        `yaml:"url"`
	SessionSecret string        `yaml:"sessionSecret"`
	SessionTTL    time.Duration `yaml:"sessionTTL"`
	SecureCookies bool          `yaml:"secureCookies"`
	// BehindProxy takes the client address from X-Forwarded-For and X-Real-IP. Only set it
	// when a load balancer in front of the portal overwrites those headers.
	BehindProxy bool `yaml:"behindProxy"`
}

// AccountsConfig defines invitation and password reset behaviour
type AccountsConfig struct {
	FromEmail        string        `yaml:"fromEmail"`
	InvitationTTL    time.Duration `yaml:"invitationTTL"`
	PasswordResetTTL time.Duration `yaml:"passwordResetTTL"`
}

// DatabaseConfig defines the database connection details
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Source string `yaml:"source"`
}

// PulsarConfig defines the messaging system connection details
type PulsarConfig struct {
	URL           string `yaml:"url"`
	TopicProducer string `yaml:"topicProducer"`
	TopicConsumer string `yaml:"topicConsumer"`
	Subscription  string `yaml:"subscription"`
}

// DirectoryConfig defines how to reach the organization directory (DPC API).
// Fake replaces the directory with an in-memory one for local development.
type DirectoryConfig struct {
	Fake    bool          `yaml:"fake"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
	Token   TokenConfig   `yaml:"token"`
}

// TokenConfig selects where the directory admin token is read from.
// Source is one of "env", "secretsmanager" or "kubernetes".
type TokenConfig struct {
	Source    string `yaml:"source"`
	EnvVar    string `yaml:"envVar"`
	SecretID  string `yaml:"secretId"`
	Key       string `yaml:"key"`
	Namespace string `yaml:"namespace"`
	Name      string `yaml:"name"`
}

type AWSConfig struct {
	Region string `yaml:"region"`
}

// LoadConfig loads and parses the configuration from a given file path
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config file path is required")
	}

	// Parse the template file
	tmpl, err := template.ParseFiles(path)
	if err != nil {
		return nil, fmt.Errorf("error parsing config file template: %w", err)
	}

	// Execute the template with environment variables
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, loadEnvVars()); err != nil {
		return nil, fmt.Errorf("error executing config file template: %w", err)
	}

	// Load and unmarshal the YAML
	var config Config
	if err := yaml.Unmarshal(buf.Bytes(), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	config.applyDefaults()

	if config.Portal.SessionSecret == "" {
		return nil, errors.New("portal.sessionSecret is required")
	}
	if !config.Directory.Fake && config.Directory.URL == "" {
		return nil, errors.New("directory.url is required unless directory.fake is set")
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api/v1"
	}
	if c.DocsPath == "" {
		c.DocsPath = "/docs"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Portal.SessionTTL == 0 {
		c.Portal.SessionTTL = 12 * time.Hour
	}
	if c.Accounts.InvitationTTL == 0 {
		c.Accounts.InvitationTTL = 72 * time.Hour
	}
	if c.Accounts.PasswordResetTTL == 0 {
		c.Accounts.PasswordResetTTL = 6 * time.Hour
	}
	if c.Directory.Timeout == 0 {
		c.Directory.Timeout = 10 * time.Second
	}
	if c.Directory.Retries < 0 {
		c.Directory.Retries = 0
	}
	if c.Directory.Token.Source == "" {
		c.Directory.Token.Source = "env"
	}
	if c.Directory.Token.EnvVar == "" {
		c.Directory.Token.EnvVar = "DPC_API_ADMIN_TOKEN"
	}
}

// loadEnvVars loads environment variables into a map
func loadEnvVars() map[string]string {
	envVars := make(map[string]string)
	for _, env := range os.Environ() {
		kv := strings.SplitN(env, "=", 2)
		if len(kv) == 2 {
			envVars[kv[0]] = kv[1]
		}
	}
	return envVars
}
