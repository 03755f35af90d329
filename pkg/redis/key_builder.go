package redis

import "fmt"

// Key templates, always passed through KeyBuilder so environments sharing a
// Redis instance never collide.
const (
	KeyCollectRateLimit = "analytics:ratelimit:%s" // analytics:ratelimit:{ip_hash}
)

// KeyBuilder provides environment-aware Redis key building functionality
type KeyBuilder struct {
	prefix string
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	prefix := "prod"
	switch environment {
	case "development", "staging":
		prefix = "staging"
	case "test":
		prefix = "test"
	}

	return &KeyBuilder{
		prefix: prefix,
	}
}

// BuildKey constructs a Redis key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// GetPrefix returns the current environment prefix
func (kb *KeyBuilder) GetPrefix() string {
	return kb.prefix
}

// KeyCollectRateLimit returns the per-client counter key for the collect endpoint
func (kb *KeyBuilder) KeyCollectRateLimit(ipHash string) string {
	return kb.BuildKey(fmt.Sprintf(KeyCollectRateLimit, ipHash))
}
