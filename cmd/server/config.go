package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/medgrove/medai-web-ui/internal/backend"
	"github.com/medgrove/medai-web-ui/internal/chat"
	"github.com/medgrove/medai-web-ui/internal/services"
)

type assistantConfig interface {
	assistant(systemPrompt string, client *backend.Client) (chat.Assistant, error)
}

// BaseAssistantConfig contains the common fields for all assistant
// configurations.
type BaseAssistantConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type backendConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"apiKey"`
}

type config struct {
	Port             string          `yaml:"port"`
	Backend          backendConfig   `yaml:"backend"`
	Assistant        assistantConfig `yaml:"assistant"`
	SystemPrompt     string          `yaml:"systemPrompt"`
	Greeting         string          `yaml:"greeting"`
	KeepFlaggedInput bool            `yaml:"keepFlaggedInput"`

	// StatsRefreshSeconds is the dashboard reconcile interval. Zero means
	// the 60-second default.
	StatsRefreshSeconds int `yaml:"statsRefreshSeconds"`

	// Optional overrides for the built-in keyword lists.
	EmergencyKeywords []string `yaml:"emergencyKeywords"`
	HighRiskSymptoms  []string `yaml:"highRiskSymptoms"`
}

// medaiConfig routes chat through the MedAI backend itself, which runs its
// own intent pipeline and safety checks server-side.
type medaiConfig struct {
	BaseAssistantConfig `yaml:",inline"`
}

type ollamaConfig struct {
	BaseAssistantConfig `yaml:",inline"`
	Host                string `yaml:"host"`
}

type openAIConfig struct {
	BaseAssistantConfig `yaml:",inline"`
	APIKey              string `yaml:"apiKey"`
	BaseURL             string `yaml:"baseUrl"`
}

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port                string         `yaml:"port"`
		Backend             backendConfig  `yaml:"backend"`
		Assistant           map[string]any `yaml:"assistant"`
		SystemPrompt        string         `yaml:"systemPrompt"`
		Greeting            string         `yaml:"greeting"`
		KeepFlaggedInput    bool           `yaml:"keepFlaggedInput"`
		StatsRefreshSeconds int            `yaml:"statsRefreshSeconds"`
		EmergencyKeywords   []string       `yaml:"emergencyKeywords"`
		HighRiskSymptoms    []string       `yaml:"highRiskSymptoms"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	c.Port = rawConfig.Port
	c.Backend = rawConfig.Backend
	c.SystemPrompt = rawConfig.SystemPrompt
	c.Greeting = rawConfig.Greeting
	c.KeepFlaggedInput = rawConfig.KeepFlaggedInput
	c.StatsRefreshSeconds = rawConfig.StatsRefreshSeconds
	c.EmergencyKeywords = rawConfig.EmergencyKeywords
	c.HighRiskSymptoms = rawConfig.HighRiskSymptoms

	// The assistant section is optional; the backend is the default provider.
	if rawConfig.Assistant == nil {
		c.Assistant = medaiConfig{}
		return nil
	}

	provider, ok := rawConfig.Assistant["provider"].(string)
	if !ok {
		return fmt.Errorf("assistant provider is required")
	}

	assistantRawYAML, err := yaml.Marshal(rawConfig.Assistant)
	if err != nil {
		return err
	}

	var ac assistantConfig
	switch provider {
	case "medai":
		ac = &medaiConfig{}
	case "ollama":
		ac = &ollamaConfig{}
	case "openai":
		ac = &openAIConfig{}
	default:
		return fmt.Errorf("unknown assistant provider: %s", provider)
	}

	if err := yaml.Unmarshal(assistantRawYAML, ac); err != nil {
		return err
	}

	c.Assistant = ac
	return nil
}

func (medaiConfig) assistant(_ string, client *backend.Client) (chat.Assistant, error) {
	return client, nil
}

func (o ollamaConfig) assistant(systemPrompt string, _ *backend.Client) (chat.Assistant, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	return services.NewOllama(host, o.Model, systemPrompt)
}

func (o openAIConfig) assistant(systemPrompt string, _ *backend.Client) (chat.Assistant, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	return services.NewOpenAI(apiKey, o.BaseURL, o.Model, systemPrompt), nil
}
