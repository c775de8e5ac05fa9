package options

import (
	"fmt"
	"slices"

	"github.com/spf13/pflag"
)

var _ IOptions = (*StoreOptions)(nil)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreS3       = "s3"
)

// StoreOptions select the command store backend.
type StoreOptions struct {
	Backend string `json:"backend" mapstructure:"backend"`
}

func NewStoreOptions() *StoreOptions {
	return &StoreOptions{Backend: StoreMemory}
}

func (o *StoreOptions) Validate() []error {
	valid := []string{StoreMemory, StorePostgres, StoreS3}
	if !slices.Contains(valid, o.Backend) {
		return []error{fmt.Errorf("--store.backend must be one of %v, got %q", valid, o.Backend)}
	}
	return nil
}

func (o *StoreOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Backend, "store.backend", o.Backend, "Command store backend: memory, postgres or s3. The memory store resets on restart.")
}
