package options

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*ClientOptions)(nil)

// ClientOptions tell dockctl where the relay is and which dock to drive.
type ClientOptions struct {
	Server      string        `json:"server" mapstructure:"server"`
	Path        string        `json:"path" mapstructure:"path"`
	DockID      string        `json:"dock" mapstructure:"dock"`
	Token       string        `json:"token" mapstructure:"token"`
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout"`
	LegacyProbe bool          `json:"legacy-probe" mapstructure:"legacy-probe"`
	GrpcAddr    string        `json:"grpc-addr" mapstructure:"grpc-addr"`
}

func NewClientOptions() *ClientOptions {
	return &ClientOptions{
		Server:   "http://localhost:8080",
		Path:     "/api/status",
		Timeout:  7 * time.Second,
		GrpcAddr: "localhost:8091",
	}
}

func (o *ClientOptions) Validate() []error {
	errors := []error{}

	if u, err := url.Parse(o.Server); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, fmt.Errorf("--client.server %q is not a valid URL", o.Server))
	}
	if !strings.HasPrefix(o.Path, "/") {
		errors = append(errors, fmt.Errorf("--client.path must start with /"))
	}
	if o.Timeout <= 0 {
		errors = append(errors, fmt.Errorf("--client.timeout must be positive"))
	}

	return errors
}

func (o *ClientOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Server, "client.server", o.Server, "Base URL of the dock relay.")
	fs.StringVar(&o.Path, "client.path", o.Path, "Path of the command resource on the relay.")
	fs.StringVar(&o.DockID, "client.dock", o.DockID, "Dock to address. Empty uses the relay's default dock.")
	fs.StringVar(&o.Token, "client.token", o.Token, "Bearer token sent with commands.")
	fs.DurationVar(&o.Timeout, "client.timeout", o.Timeout, "Timeout of every request to the relay.")
	fs.BoolVar(&o.LegacyProbe, "client.legacy-probe", o.LegacyProbe, "Judge connectivity by sniffing the bare endpoint for an HTML page.")
	fs.StringVar(&o.GrpcAddr, "client.grpc-addr", o.GrpcAddr, "Address of the relay's gRPC health service.")
}
