package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*PostgresOptions)(nil)

// PostgresOptions configure the postgres command store.
type PostgresOptions struct {
	DSN             string        `json:"dsn" mapstructure:"dsn"`
	MaxOpenConns    int           `json:"max-open-conns" mapstructure:"max-open-conns"`
	MaxIdleConns    int           `json:"max-idle-conns" mapstructure:"max-idle-conns"`
	ConnMaxLifetime time.Duration `json:"conn-max-lifetime" mapstructure:"conn-max-lifetime"`

	// ConnectAttempts bounds how often the store tries to reach the
	// database at startup, ConnectRetryDelay apart.
	ConnectAttempts   int           `json:"connect-attempts" mapstructure:"connect-attempts"`
	ConnectRetryDelay time.Duration `json:"connect-retry-delay" mapstructure:"connect-retry-delay"`
}

func NewPostgresOptions() *PostgresOptions {
	return &PostgresOptions{
		DSN:             "postgres://localhost:5432/dockrelay?sslmode=disable",
		MaxOpenConns:      10,
		MaxIdleConns:      5,
		ConnMaxLifetime:   5 * time.Minute,
		ConnectAttempts:   5,
		ConnectRetryDelay: 5 * time.Second,
	}
}

func (o *PostgresOptions) Validate() []error {
	errors := []error{}

	if o.DSN == "" {
		errors = append(errors, fmt.Errorf("--postgres.dsn must not be empty"))
	}
	if o.MaxOpenConns < 1 {
		errors = append(errors, fmt.Errorf("--postgres.max-open-conns must be at least 1"))
	}
	if o.ConnectAttempts < 1 {
		errors = append(errors, fmt.Errorf("--postgres.connect-attempts must be at least 1"))
	}
	if o.ConnectRetryDelay < 0 {
		errors = append(errors, fmt.Errorf("--postgres.connect-retry-delay must not be negative"))
	}

	return errors
}

func (o *PostgresOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.DSN, "postgres.dsn", o.DSN, "Postgres connection string.")
	fs.IntVar(&o.MaxOpenConns, "postgres.max-open-conns", o.MaxOpenConns, "Maximum open connections.")
	fs.IntVar(&o.MaxIdleConns, "postgres.max-idle-conns", o.MaxIdleConns, "Maximum idle connections.")
	fs.DurationVar(&o.ConnMaxLifetime, "postgres.conn-max-lifetime", o.ConnMaxLifetime, "Maximum lifetime of a pooled connection.")
	fs.IntVar(&o.ConnectAttempts, "postgres.connect-attempts", o.ConnectAttempts, "Times to try reaching the database at startup before giving up.")
	fs.DurationVar(&o.ConnectRetryDelay, "postgres.connect-retry-delay", o.ConnectRetryDelay, "Wait between startup connection attempts.")
}
