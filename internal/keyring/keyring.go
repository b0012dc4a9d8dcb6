// Package keyring provides access to the system keychain for storing API keys.
package keyring

import (
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const serviceName = "voicepost"

// APIKey represents a named API key stored in the keychain.
type APIKey string

const (
	// AssemblyAI is the keychain entry for the AssemblyAI API key.
	AssemblyAI APIKey = "assemblyai-api-key"
	// OpenAI is the keychain entry for the OpenAI API key.
	OpenAI APIKey = "openai-api-key"
	// Anthropic is the keychain entry for the Anthropic API key.
	Anthropic APIKey = "anthropic-api-key"
	// AWSSecret is the keychain entry for the S3 secret access key.
	AWSSecret APIKey = "aws-secret-access-key"
)

// AllAPIKeys returns all known API key types for iteration.
func AllAPIKeys() []APIKey {
	return []APIKey{AssemblyAI, OpenAI, Anthropic, AWSSecret}
}

// DisplayName returns a human-readable name for the API key.
func (k APIKey) DisplayName() string {
	switch k {
	case AssemblyAI:
		return "assemblyai"
	case OpenAI:
		return "openai"
	case Anthropic:
		return "anthropic"
	case AWSSecret:
		return "aws-secret"
	default:
		return string(k)
	}
}

// Get retrieves an API key value from the system keychain.
func Get(apiKey APIKey) (string, error) {
	value, err := keyring.Get(serviceName, string(apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to get %s from keychain: %w", apiKey.DisplayName(), err)
	}

	return value, nil
}

// Set stores an API key value in the system keychain.
func Set(apiKey APIKey, value string) error {
	if err := keyring.Set(serviceName, string(apiKey), value); err != nil {
		return fmt.Errorf("failed to set %s in keychain: %w", apiKey.DisplayName(), err)
	}

	return nil
}

// Delete removes an API key from the system keychain.
func Delete(apiKey APIKey) error {
	if err := keyring.Delete(serviceName, string(apiKey)); err != nil {
		return fmt.Errorf("failed to delete %s from keychain: %w", apiKey.DisplayName(), err)
	}

	return nil
}

// IsSet checks if an API key exists in the keychain.
func IsSet(apiKey APIKey) bool {
	_, err := keyring.Get(serviceName, string(apiKey))

	return err == nil
}

// Resolve returns explicit when it is non-empty, otherwise the keychain
// value, otherwise "". A missing key is not an error: providers without a
// key fall back or fail on their own terms.
func Resolve(apiKey APIKey, explicit string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}

	value, err := Get(apiKey)
	if err != nil {
		return ""
	}

	return value
}

// APIKeyFromServiceName maps a service name (e.g., "openai") to an APIKey.
func APIKeyFromServiceName(name string) (APIKey, error) {
	for _, key := range AllAPIKeys() {
		if key.DisplayName() == name {
			return key, nil
		}
	}

	return "", fmt.Errorf("unknown service: %s", name)
}
