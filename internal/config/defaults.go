package config

// DefaultExcludes are glob patterns skipped during bulk ingestion.
var DefaultExcludes = []string{
	".git/**",
	"node_modules/**",
	"*.tmp",
	"~$*",
}

// DefaultConfig returns a Config with sensible defaults. The static
// provider works without any API key, so a fresh install is usable
// out of the box.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderStatic,
		Model:    "gpt-4o",
		Port:     8080,
		DataDir:  ".investigate",
		Include:  []string{"**/*.{pdf,docx,xlsx,json}"},
		Exclude:  DefaultExcludes,
	}
}
