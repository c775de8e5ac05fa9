package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/solar-synergy/dockrelay/pkg/app"
	"github.com/solar-synergy/dockrelay/pkg/log"
	"github.com/solar-synergy/dockrelay/pkg/options"
)

type CtlOptions struct {
	ClientOptions *options.ClientOptions `json:"client" mapstructure:"client"`
	AuthOptions   *options.AuthOptions   `json:"auth" mapstructure:"auth"`
	Log           *log.Options           `json:"log" mapstructure:"log"`
}

var (
	_ app.NamedFlagSetOptions = (*CtlOptions)(nil)
	_ app.LogOptionsProvider  = (*CtlOptions)(nil)
)

func NewCtlOptions() *CtlOptions {
	logOpts := log.NewOptions()
	// Keep stdout for command output.
	logOpts.Level = "warn"
	logOpts.OutputPaths = []string{"stderr"}

	return &CtlOptions{
		ClientOptions: options.NewClientOptions(),
		AuthOptions:   options.NewAuthOptions(),
		Log:           logOpts,
	}
}

func (o *CtlOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.ClientOptions.AddFlags(fss.FlagSet("client"))
	o.AuthOptions.AddFlags(fss.FlagSet("auth"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *CtlOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.ClientOptions.Validate()...)
	errs = append(errs, o.AuthOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *CtlOptions) LogOptions() *log.Options {
	return o.Log
}
