package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to .investigate.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to investigate! Let's configure your workspace.")
	fmt.Println()

	// 1. Provider selection.
	providerPrompt := promptui.Select{
		Label: "Select analysis engine",
		Items: []string{
			"static — deterministic, no API key needed",
			"openai — LLM-backed analysis (requires OPENAI_API_KEY)",
		},
	}
	providerIdx, _, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	providers := []ProviderType{ProviderStatic, ProviderOpenAI}
	provider := providers[providerIdx]

	cfg := DefaultConfig()
	cfg.Provider = provider

	// 2. Model, only relevant for the LLM engine.
	if provider == ProviderOpenAI {
		modelPrompt := promptui.Prompt{
			Label:   "Model",
			Default: cfg.Model,
		}
		model, err := modelPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("model: %w", err)
		}
		cfg.Model = model
	}

	// 3. Server port.
	portPrompt := promptui.Prompt{
		Label:   "Server port",
		Default: strconv.Itoa(cfg.Port),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 || n > 65535 {
				return fmt.Errorf("port must be a number between 1 and 65535")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Port, _ = strconv.Atoi(portStr)

	// 4. Data directory.
	dataDirPrompt := promptui.Prompt{
		Label:   "Data directory",
		Default: cfg.DataDir,
	}
	dataDir, err := dataDirPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	cfg.DataDir = dataDir

	// 5. Ingest include patterns.
	includePrompt := promptui.Prompt{
		Label:   "Ingest include patterns (comma-separated globs)",
		Default: strings.Join(cfg.Include, ","),
	}
	includeStr, err := includePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("include patterns: %w", err)
	}
	cfg.Include = splitAndTrim(includeStr)

	// Check for API key.
	if envVar := APIKeyEnvVar(provider); envVar != "" && os.Getenv(envVar) == "" {
		fmt.Printf("\nNote: Set %s in your environment before running investigate serve.\n", envVar)
	}

	// Save to .investigate.yml.
	configPath := ".investigate.yml"
	if err := cfg.Save(configPath); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", configPath)
	return cfg, nil
}

// splitAndTrim splits a comma-separated string and trims whitespace.
func splitAndTrim(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
