package config

// ProviderType identifies an analysis engine provider.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderStatic ProviderType = "static"
)

// Config is the top-level configuration, corresponding to .investigate.yml.
type Config struct {
	Provider ProviderType `yaml:"provider" koanf:"provider"`
	Model    string       `yaml:"model" koanf:"model"`
	Port     int          `yaml:"port" koanf:"port"`
	DataDir  string       `yaml:"data_dir" koanf:"data_dir"`
	AllowAll bool         `yaml:"allow_all_origins" koanf:"allow_all_origins"`
	Include  []string     `yaml:"include" koanf:"include"`
	Exclude  []string     `yaml:"exclude" koanf:"exclude"`
}
