package storefront

import (
	"net/http"
	"time"

	"github.com/ikkim/storefront-sync/pkg/logger"
)

// Config represents the configuration for the storefront API client
type Config struct {
	// BaseURL is the API root, e.g. https://laravel-api.fly.dev/api
	BaseURL string

	// Timeout bounds every HTTP call. Zero means 30 seconds.
	Timeout time.Duration

	// EmptyCartRetries is how many times FetchCartSettled re-reads an empty
	// authenticated cart or a 401 before accepting the result.
	EmptyCartRetries int

	// RetryDelay is the fixed wait between those retries
	RetryDelay time.Duration

	// SendIdentityHint adds client_id and email to authenticated calls
	SendIdentityHint bool

	HTTPClient *http.Client
	Logger     *logger.Logger
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrInvalidRequest
	}
	if c.EmptyCartRetries < 0 || c.RetryDelay < 0 {
		return ErrInvalidRequest
	}
	return nil
}

// IdentityHint carries correlation fields the API may use alongside the bearer token.
type IdentityHint struct {
	ClientID string
	Email    string
}

// CredentialSource supplies the bearer token of the current identity.
// ok is false for anonymous calls.
type CredentialSource interface {
	Credential() (token string, hint IdentityHint, ok bool)
}
