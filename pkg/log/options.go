// Copyright 2025 The Autopeer Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"fmt"
	"slices"

	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options configure the global logger. The mapstructure keys match the
// flag names below the "log." prefix so a config file can set them too.
type Options struct {
	// Name is added to every entry as the logger field.
	Name string `json:"name,omitempty" mapstructure:"name"`

	// Level is one of debug, info, warn, error. It can change at runtime
	// through SetLevel.
	Level string `json:"level,omitempty" mapstructure:"level"`

	Format string `json:"format,omitempty" mapstructure:"format"`

	// EnableColor only applies to the console format.
	EnableColor bool `json:"enable-color,omitempty" mapstructure:"enable-color"`

	DisableCaller bool `json:"disable-caller,omitempty" mapstructure:"disable-caller"`

	// CallerSkip is 2 for callers of the package-level functions. Wrappers
	// add their own depth.
	CallerSkip int `json:"caller-skip,omitempty" mapstructure:"caller-skip"`

	// OutputPaths accepts file paths plus "stdout" and "stderr".
	OutputPaths []string `json:"output-paths,omitempty" mapstructure:"output-paths"`
}

func NewOptions() *Options {
	return &Options{
		Level:       "info",
		Format:      FormatConsole,
		EnableColor: true,
		CallerSkip:  2,
		OutputPaths: []string{"stdout"},
	}
}

func (o *Options) Validate() []error {
	var errs []error
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(o.Level)); err != nil {
		errs = append(errs, fmt.Errorf("--log.level: %w", err))
	}
	if !slices.Contains([]string{FormatConsole, FormatJSON}, o.Format) {
		errs = append(errs, fmt.Errorf("--log.format must be %q or %q, got %q", FormatConsole, FormatJSON, o.Format))
	}
	if o.CallerSkip < 0 {
		errs = append(errs, fmt.Errorf("--log.caller-skip must not be negative"))
	}
	return errs
}

func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Level, "log.level", o.Level, "Minimum level to log: debug, info, warn or error. Reloaded when the config file changes.")
	fs.StringVar(&o.Format, "log.format", o.Format, "Log encoding: console or json.")
	fs.StringVar(&o.Name, "log.name", o.Name, "Logger name added to every entry.")
	fs.BoolVar(&o.EnableColor, "log.enable-color", o.EnableColor, "Colour levels in console output.")
	fs.BoolVar(&o.DisableCaller, "log.disable-caller", o.DisableCaller, "Omit the file:line of the caller.")
	fs.IntVar(&o.CallerSkip, "log.caller-skip", o.CallerSkip, "Stack frames to skip when reporting the caller.")
	fs.StringSliceVar(&o.OutputPaths, "log.output-paths", o.OutputPaths, "Where to write logs: stdout, stderr or file paths.")
}
