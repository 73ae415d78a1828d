package config

// Option adjusts where Load looks for configuration.
type Option func(*options)

type options struct {
	configPath string
	envFile    string
	envPrefix  string
}

// WithConfigFile reads path instead of searching for edgebench.toml.
func WithConfigFile(path string) Option {
	return func(o *options) { o.configPath = path }
}

// WithEnvFile loads variables from path before reading the environment.
// Variables already set in the process take precedence.
func WithEnvFile(path string) Option {
	return func(o *options) { o.envFile = path }
}

// WithEnvPrefix replaces the EDGEBENCH environment prefix.
func WithEnvPrefix(prefix string) Option {
	return func(o *options) { o.envPrefix = prefix }
}
