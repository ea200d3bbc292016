package ae

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/invictus-insights/aegnix-platform-sdk-ae/transport"
)

// Config is the file-loadable counterpart of the functional options,
// for deployments that configure agents from YAML rather than code.
// Zero fields fall back to the option defaults.
type Config struct {
	BrokerURL string `yaml:"broker_url"`
	Transport string `yaml:"transport"`

	// Managed pub/sub settings, used when Transport is "pubsub".
	ProjectID string `yaml:"project_id"`

	// Log broker settings, used when Transport is "kafka".
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`

	Publishes  []string `yaml:"publishes"`
	Subscribes []string `yaml:"subscribes"`

	SessionPath string `yaml:"session_path"`
	AutoRefresh *bool  `yaml:"auto_refresh"`
	AutoPersist *bool  `yaml:"auto_persist"`

	RequestTimeout time.Duration `yaml:"request_timeout"`
	AccessLeeway   time.Duration `yaml:"access_leeway"`

	Meta map[string]any `yaml:"meta"`
}

// LoadConfig reads and parses a YAML agent configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// Options converts the configuration into the equivalent functional
// options. Options appended after these override the file values.
func (c *Config) Options() []Option {
	var opts []Option
	if c.BrokerURL != "" {
		opts = append(opts, WithBrokerURL(c.BrokerURL))
	}
	if c.Transport != "" {
		opts = append(opts, WithTransportKind(transport.Kind(c.Transport)))
	}
	if c.ProjectID != "" {
		opts = append(opts, WithPubSubProject(c.ProjectID))
	}
	if len(c.Brokers) > 0 {
		opts = append(opts, WithKafkaBrokers(c.Brokers...))
	}
	if c.GroupID != "" {
		opts = append(opts, WithKafkaGroupID(c.GroupID))
	}
	if len(c.Publishes) > 0 {
		opts = append(opts, WithPublishes(c.Publishes...))
	}
	if len(c.Subscribes) > 0 {
		opts = append(opts, WithSubscribes(c.Subscribes...))
	}
	if c.SessionPath != "" {
		opts = append(opts, WithSessionStorePath(c.SessionPath))
	}
	if c.AutoRefresh != nil {
		opts = append(opts, WithAutoRefresh(*c.AutoRefresh))
	}
	if c.AutoPersist != nil {
		opts = append(opts, WithAutoPersist(*c.AutoPersist))
	}
	if c.RequestTimeout > 0 {
		opts = append(opts, WithRequestTimeout(c.RequestTimeout))
	}
	if c.AccessLeeway > 0 {
		opts = append(opts, WithAccessLeeway(c.AccessLeeway))
	}
	if len(c.Meta) > 0 {
		opts = append(opts, WithCapabilityMeta(c.Meta))
	}
	return opts
}
