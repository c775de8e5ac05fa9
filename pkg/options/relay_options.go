package options

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/solar-synergy/dockrelay/pkg/dock"
)

var _ IOptions = (*RelayOptions)(nil)

// RelayOptions shape the relay endpoint itself.
type RelayOptions struct {
	// Path is where the command resource is mounted.
	Path string `json:"path" mapstructure:"path"`

	// DefaultDockID is used when a request names no dock.
	DefaultDockID string `json:"default-dock-id" mapstructure:"default-dock-id"`

	// StaleAfter flags commands older than this in JSON views. Zero disables it.
	StaleAfter time.Duration `json:"stale-after" mapstructure:"stale-after"`

	// DedupeWindow is how long a requestId is remembered.
	DedupeWindow time.Duration `json:"dedupe-window" mapstructure:"dedupe-window"`

	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64 `json:"max-body-bytes" mapstructure:"max-body-bytes"`
}

func NewRelayOptions() *RelayOptions {
	return &RelayOptions{
		Path:          "/api/status",
		DefaultDockID: dock.DefaultDockID,
		StaleAfter:    0,
		DedupeWindow:  5 * time.Minute,
		MaxBodyBytes:  1 << 10,
	}
}

func (o *RelayOptions) Validate() []error {
	errors := []error{}

	if !strings.HasPrefix(o.Path, "/") || strings.HasSuffix(o.Path, "/") {
		errors = append(errors, fmt.Errorf("--relay.path must start with / and not end with /, got %q", o.Path))
	}
	if _, err := dock.NormalizeDockID(o.DefaultDockID); err != nil || o.DefaultDockID == "" {
		errors = append(errors, fmt.Errorf("--relay.default-dock-id %q is not a valid dock id", o.DefaultDockID))
	}
	if o.StaleAfter < 0 {
		errors = append(errors, fmt.Errorf("--relay.stale-after must not be negative"))
	}
	if o.DedupeWindow < 0 {
		errors = append(errors, fmt.Errorf("--relay.dedupe-window must not be negative"))
	}
	if o.MaxBodyBytes < 64 {
		errors = append(errors, fmt.Errorf("--relay.max-body-bytes must be at least 64"))
	}

	return errors
}

func (o *RelayOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Path, "relay.path", o.Path, "Path of the command resource.")
	fs.StringVar(&o.DefaultDockID, "relay.default-dock-id", o.DefaultDockID, "Dock addressed by requests that name none.")
	fs.DurationVar(&o.StaleAfter, "relay.stale-after", o.StaleAfter, "Report commands older than this as stale. 0 disables.")
	fs.DurationVar(&o.DedupeWindow, "relay.dedupe-window", o.DedupeWindow, "How long a write requestId is remembered for retries.")
	fs.Int64Var(&o.MaxBodyBytes, "relay.max-body-bytes", o.MaxBodyBytes, "Maximum accepted request body size.")
}
