package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*AuthOptions)(nil)

// AuthOptions enable bearer token checks on command writes. An empty secret
// leaves the relay open.
type AuthOptions struct {
	JWTSecret string        `json:"jwt-secret" mapstructure:"jwt-secret"`
	Issuer    string        `json:"issuer" mapstructure:"issuer"`
	TokenTTL  time.Duration `json:"token-ttl" mapstructure:"token-ttl"`
}

func NewAuthOptions() *AuthOptions {
	return &AuthOptions{
		Issuer:   "dock-relay",
		TokenTTL: 24 * time.Hour,
	}
}

// Enabled reports whether writes need a token.
func (o *AuthOptions) Enabled() bool {
	return o != nil && o.JWTSecret != ""
}

func (o *AuthOptions) Validate() []error {
	if !o.Enabled() {
		return nil
	}

	errors := []error{}
	if len(o.JWTSecret) < 16 {
		errors = append(errors, fmt.Errorf("--auth.jwt-secret must be at least 16 bytes"))
	}
	if o.TokenTTL <= 0 {
		errors = append(errors, fmt.Errorf("--auth.token-ttl must be positive"))
	}
	return errors
}

func (o *AuthOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.JWTSecret, "auth.jwt-secret", o.JWTSecret, "HS256 secret for bearer tokens on command writes. Empty disables auth.")
	fs.StringVar(&o.Issuer, "auth.issuer", o.Issuer, "Issuer claim expected in, and written to, tokens.")
	fs.DurationVar(&o.TokenTTL, "auth.token-ttl", o.TokenTTL, "Lifetime of tokens minted by dockctl token.")
}
