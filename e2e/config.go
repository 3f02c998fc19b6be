package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	APIBaseURL     string `envconfig:"E2E_API_BASE_URL"`
	FeedURL        string `envconfig:"E2E_FEED_URL"`
	AccessToken    string `envconfig:"E2E_ACCESS_TOKEN"`
	ConversationID string `envconfig:"E2E_CONVERSATION_ID"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
