// Package config loads NewsForge's YAML configuration with XDG path
// resolution and embedded defaults.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/newsforge/newsforge/internal/openrouter"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// DefaultSearchInstructions is the prompt sent before the quoted keyword.
// It asks for the JSON object shape the extractor expects.
const DefaultSearchInstructions = `You are a news research assistant. Search the web for the most recent and relevant news stories about the topic given at the end of this message.

Find 3 to 5 distinct, current news stories. For each story provide:
- title: a concise headline
- summary: 2-3 sentences covering the key facts
- category: one broad category such as Technology, Business, Science, Politics, or Sports
- rating: importance from 1 to 10, where 10 is major breaking news
- source: the publication name
- url: a link to the story
- date: the publication date in YYYY-MM-DD form if known

Respond with only a JSON object of this exact shape, no prose before or after:
{"stories": [{"title": "...", "summary": "...", "category": "...", "rating": 7, "source": "...", "url": "...", "date": "..."}]}

The topic to research is:`

type Config struct {
	OpenRouter OpenRouter            `yaml:"openrouter"`
	Search     Search                `yaml:"search"`
	Parameters openrouter.Parameters `yaml:"parameters"`
	Feeds      []Feed                `yaml:"feeds"`
	Output     Output                `yaml:"output"`
	Server     Server                `yaml:"server"`
}

type OpenRouter struct {
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
}

type Search struct {
	Instructions    string `yaml:"instructions"`
	Mode            string `yaml:"mode"` // "json" or "text"
	ConversionRules string `yaml:"conversion_rules"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

// ConfigDir returns the XDG config directory for newsforge.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "newsforge")
}

// DataDir returns the XDG data directory for newsforge.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "newsforge")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/newsforge/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'newsforge init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		OpenRouter: OpenRouter{
			APIKeyEnv: "OPENROUTER_API_KEY",
			Model:     "perplexity/sonar",
		},
		Search: Search{
			Instructions: DefaultSearchInstructions,
			Mode:         "json",
		},
		Parameters: defaultParameters(),
		Server:     Server{Port: 8000},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Search.Mode != "json" && cfg.Search.Mode != "text" {
		return nil, fmt.Errorf("search.mode must be json or text, got %q", cfg.Search.Mode)
	}

	return cfg, nil
}

// defaultParameters shapes requests conservatively: low-ish temperature
// for factual output, JSON mode where the model variant allows it, and
// penalties against repeated stories.
func defaultParameters() openrouter.Parameters {
	return openrouter.Parameters{
		Temperature:      f(0.5),
		MaxTokens:        f(8000),
		ResponseFormat:   "json_object",
		TopP:             f(0.9),
		FrequencyPenalty: f(0.5),
		PresencePenalty:  f(0.3),
	}
}

func f(v float64) *float64 { return &v }

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// DatabasePath returns the SQLite file location under the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.GetDataDir(), "newsforge.db")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
