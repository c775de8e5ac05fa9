package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/solar-synergy/dockrelay/internal/relay"
	"github.com/solar-synergy/dockrelay/pkg/app"
	"github.com/solar-synergy/dockrelay/pkg/log"
	"github.com/solar-synergy/dockrelay/pkg/options"
)

type RelayOptions struct {
	HttpOptions     *options.HttpOptions     `json:"http" mapstructure:"http"`
	GrpcOptions     *options.GrpcOptions     `json:"grpc" mapstructure:"grpc"`
	MqttOptions     *options.MqttOptions     `json:"mqtt" mapstructure:"mqtt"`
	S3Options       *options.S3Options       `json:"s3" mapstructure:"s3"`
	PostgresOptions *options.PostgresOptions `json:"postgres" mapstructure:"postgres"`
	StoreOptions    *options.StoreOptions    `json:"store" mapstructure:"store"`
	AuthOptions     *options.AuthOptions     `json:"auth" mapstructure:"auth"`
	RelayOptions    *options.RelayOptions    `json:"relay" mapstructure:"relay"`
	Log             *log.Options             `json:"log" mapstructure:"log"`
}

var (
	_ app.NamedFlagSetOptions = (*RelayOptions)(nil)
	_ app.LogOptionsProvider  = (*RelayOptions)(nil)
)

func NewRelayOptions() *RelayOptions {
	return &RelayOptions{
		HttpOptions:     options.NewHttpOptions(),
		GrpcOptions:     options.NewGrpcOptions(),
		MqttOptions:     options.NewMqttOptions(),
		S3Options:       options.NewS3Options(),
		PostgresOptions: options.NewPostgresOptions(),
		StoreOptions:    options.NewStoreOptions(),
		AuthOptions:     options.NewAuthOptions(),
		RelayOptions:    options.NewRelayOptions(),
		Log:             log.NewOptions(),
	}
}

func (o *RelayOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.RelayOptions.AddFlags(fss.FlagSet("relay"))
	o.StoreOptions.AddFlags(fss.FlagSet("store"))
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.GrpcOptions.AddFlags(fss.FlagSet("grpc"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.S3Options.AddFlags(fss.FlagSet("s3"))
	o.PostgresOptions.AddFlags(fss.FlagSet("postgres"))
	o.AuthOptions.AddFlags(fss.FlagSet("auth"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *RelayOptions) Complete() error {
	return nil
}

// Validate checks every option group; backend options are only checked
// when that backend is selected.
func (o *RelayOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.RelayOptions.Validate()...)
	errs = append(errs, o.StoreOptions.Validate()...)
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.GrpcOptions.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	switch o.StoreOptions.Backend {
	case options.StoreS3:
		errs = append(errs, o.S3Options.Validate()...)
	case options.StorePostgres:
		errs = append(errs, o.PostgresOptions.Validate()...)
	}
	errs = append(errs, o.AuthOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *RelayOptions) LogOptions() *log.Options {
	return o.Log
}

func (o *RelayOptions) Config() (*relay.Config, error) {
	return &relay.Config{
		HttpOptions:     o.HttpOptions,
		GrpcOptions:     o.GrpcOptions,
		MqttOptions:     o.MqttOptions,
		S3Options:       o.S3Options,
		PostgresOptions: o.PostgresOptions,
		StoreOptions:    o.StoreOptions,
		AuthOptions:     o.AuthOptions,
		RelayOptions:    o.RelayOptions,
	}, nil
}
