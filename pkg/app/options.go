package app

import (
	cliflag "k8s.io/component-base/cli/flag"
)

// NamedFlagSetOptions is implemented by every command's option bundle.
// Validate returns the aggregate of all option groups' errors.
type NamedFlagSetOptions interface {
	Flags() cliflag.NamedFlagSets
	Validate() error
}

// CompleteableOptions fills in derived values after flags and config are read.
type CompleteableOptions interface {
	Complete() error
}
