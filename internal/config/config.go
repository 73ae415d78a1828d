// Package config loads run settings from flags, the environment, an
// optional .env file and edgebench.toml, in that order of precedence.
package config

import (
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/edgebench/internal/errors"
	"codeberg.org/mutker/edgebench/internal/logger"
	"codeberg.org/mutker/edgebench/internal/scenario"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	ScenarioAll = "all"

	DefaultIterations      = 10
	DefaultDuration        = 300
	DefaultOutput          = "results"
	DefaultLogLevel        = "info"
	DefaultSupervisor      = "http://127.0.0.1:5000"
	DefaultLoadThreshold   = 70.0
	DefaultCooldown        = 30 * time.Second
	DefaultCollectorPeriod = 5 * time.Second
	DefaultMQTTTopicPrefix = "edgebench/sensors"
	DefaultStorePath       = "metrics.db"
	DefaultEnvPrefix       = "EDGEBENCH"
	configEnv              = "EDGEBENCH_CONFIG"
	configName             = "edgebench"
	configType             = "toml"
	systemConfigDir        = "/etc/edgebench"
	defaultEnvFile         = ".env"
	transportHTTP          = "http"
	transportMQTT          = "mqtt"
)

type Peer struct {
	Location string `mapstructure:"location"`
	Endpoint string `mapstructure:"endpoint"`
}

type MQTT struct {
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

type Store struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type Collector struct {
	Interval time.Duration `mapstructure:"interval"`
}

type Config struct {
	Scenario   string `mapstructure:"scenario"`
	Iterations int    `mapstructure:"iterations"`
	// Duration of each iteration in seconds.
	Duration int    `mapstructure:"duration"`
	Output   string `mapstructure:"output"`
	LogLevel string `mapstructure:"log_level"`

	Supervisor    string        `mapstructure:"supervisor"`
	Peers         []Peer        `mapstructure:"peers"`
	LoadThreshold float64       `mapstructure:"load_threshold"`
	Cooldown      time.Duration `mapstructure:"cooldown"`

	SensorTransport string    `mapstructure:"sensor_transport"`
	MQTT            MQTT      `mapstructure:"mqtt"`
	Store           Store     `mapstructure:"store"`
	Collector       Collector `mapstructure:"collector"`
}

func defaultPeers() []map[string]any {
	return []map[string]any{
		{"location": "office", "endpoint": "http://127.0.0.1:5001"},
		{"location": "kitchen", "endpoint": "http://127.0.0.1:5002"},
		{"location": "hallway", "endpoint": "http://127.0.0.1:5003"},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scenario", ScenarioAll)
	v.SetDefault("iterations", DefaultIterations)
	v.SetDefault("duration", DefaultDuration)
	v.SetDefault("output", DefaultOutput)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("supervisor", DefaultSupervisor)
	v.SetDefault("peers", defaultPeers())
	v.SetDefault("load_threshold", DefaultLoadThreshold)
	v.SetDefault("cooldown", DefaultCooldown)
	v.SetDefault("sensor_transport", transportHTTP)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.topic_prefix", DefaultMQTTTopicPrefix)
	v.SetDefault("store.enabled", false)
	v.SetDefault("store.path", DefaultStorePath)
	v.SetDefault("collector.interval", DefaultCollectorPeriod)
}

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("edgebench", flag.ContinueOnError)
	fs.String("scenario", ScenarioAll, "scenario to run (S1, S2, S3 or all)")
	fs.Int("iterations", DefaultIterations, "iterations per scenario")
	fs.Int("duration", DefaultDuration, "duration of each iteration in seconds")
	fs.String("output", DefaultOutput, "directory for results, metrics and logs")
	return fs
}

// Load parses args (without the program name) and merges them over the
// environment and the config file. A --help request returns pflag.ErrHelp.
func Load(args []string, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{envFile: defaultEnvFile, envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(&o)
	}

	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !os.IsNotExist(err) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}
	for key, name := range map[string]string{
		"scenario":   "scenario",
		"iterations": "iterations",
		"duration":   "duration",
		"output":     "output",
	} {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	if err := readConfigFile(v, o.configPath); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func readConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		path = os.Getenv(configEnv)
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType(configType)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(".")
		v.AddConfigPath(systemConfigDir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.New().Wrap(errors.ErrReadConfig, err)
	}
	return nil
}

// Validate checks every setting and returns the first violation.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !strings.EqualFold(c.Scenario, ScenarioAll) {
		if _, ok := scenario.ParseID(c.Scenario); !ok {
			return errFactory.WithData(errors.ErrUnknownScenario, c.Scenario)
		}
	}
	if c.Iterations < 1 {
		return errFactory.WithData(ErrInvalidIterations, c.Iterations)
	}
	if c.Duration < 1 {
		return errFactory.WithData(ErrInvalidDuration, c.Duration)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if c.LoadThreshold <= 0 || c.LoadThreshold > 100 {
		return errFactory.WithData(ErrInvalidThreshold, c.LoadThreshold)
	}
	if c.Cooldown < 0 || c.Collector.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, struct {
			Cooldown  time.Duration
			Collector time.Duration
		}{c.Cooldown, c.Collector.Interval})
	}
	if c.Supervisor == "" {
		return errFactory.WithMessage(ErrMissingEndpoint, "supervisor endpoint is required")
	}

	seen := make(map[string]bool, len(c.Peers))
	for _, p := range c.Peers {
		if p.Location == "" || p.Endpoint == "" || seen[p.Location] {
			return errFactory.WithData(ErrInvalidPeer, p)
		}
		seen[p.Location] = true
	}

	switch strings.ToLower(c.SensorTransport) {
	case transportHTTP:
	case transportMQTT:
		if c.MQTT.Broker == "" {
			return errFactory.New(ErrMissingBroker)
		}
	default:
		return errFactory.WithData(ErrInvalidTransport, c.SensorTransport)
	}

	return nil
}

// ScenarioIDs returns the scenarios selected by Scenario.
func (c *Config) ScenarioIDs() []scenario.ID {
	if id, ok := scenario.ParseID(c.Scenario); ok {
		return []scenario.ID{id}
	}
	return scenario.IDs()
}

// RunAll reports whether every scenario is selected.
func (c *Config) RunAll() bool {
	return strings.EqualFold(c.Scenario, ScenarioAll)
}

func (c *Config) IterationDuration() time.Duration {
	return time.Duration(c.Duration) * time.Second
}

// ScenarioPeers converts the configured peers for the scenario engines.
func (c *Config) ScenarioPeers() []scenario.Peer {
	peers := make([]scenario.Peer, len(c.Peers))
	for i, p := range c.Peers {
		peers[i] = scenario.Peer{Location: p.Location, Endpoint: p.Endpoint}
	}
	return peers
}
