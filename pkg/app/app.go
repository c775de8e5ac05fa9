package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cliflag "k8s.io/component-base/cli/flag"
	"k8s.io/component-base/cli/globalflag"

	"github.com/solar-synergy/dockrelay/pkg/log"
)

// RunFunc is the main body of a command, called after options are loaded
// and validated.
type RunFunc func() error

// Option configures an App.
type Option func(*App)

// LogOptionsProvider lets the App initialise logging from the loaded options.
type LogOptionsProvider interface {
	LogOptions() *log.Options
}

// App is a cobra command whose flags are grouped option sets, overridable
// from a config file and DOCKRELAY_* environment variables.
type App struct {
	basename    string
	name        string
	description string
	options     NamedFlagSetOptions
	runFunc     RunFunc
	silence     bool
	noConfig    bool
	args        cobra.PositionalArgs
	commands    []*cobra.Command

	configFile string
	viper      *viper.Viper
	cmd        *cobra.Command
}

func WithOptions(opt NamedFlagSetOptions) Option {
	return func(a *App) { a.options = opt }
}

func WithRunFunc(run RunFunc) Option {
	return func(a *App) { a.runFunc = run }
}

func WithDescription(desc string) Option {
	return func(a *App) { a.description = desc }
}

// WithSilence suppresses cobra's usage and error output.
func WithSilence() Option {
	return func(a *App) { a.silence = true }
}

// WithNoConfig drops the --config flag and environment overrides.
func WithNoConfig() Option {
	return func(a *App) { a.noConfig = true }
}

func WithValidArgs(args cobra.PositionalArgs) Option {
	return func(a *App) { a.args = args }
}

// WithDefaultValidArgs rejects positional arguments.
func WithDefaultValidArgs() Option {
	return func(a *App) {
		a.args = func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				if len(arg) > 0 {
					return fmt.Errorf("%q does not take any arguments, got %q", cmd.CommandPath(), args)
				}
			}
			return nil
		}
	}
}

// WithCommands adds subcommands. They inherit every option flag.
func WithCommands(cmds ...*cobra.Command) Option {
	return func(a *App) { a.commands = append(a.commands, cmds...) }
}

func NewApp(basename, name string, opts ...Option) *App {
	a := &App{basename: basename, name: name}
	for _, o := range opts {
		o(a)
	}
	a.buildCommand()
	return a
}

// Command returns the underlying cobra command.
func (a *App) Command() *cobra.Command {
	return a.cmd
}

// Viper returns the configuration source, or nil before the command ran.
func (a *App) Viper() *viper.Viper {
	return a.viper
}

// Run executes the command and exits non-zero on failure.
func (a *App) Run() {
	a.RunContext(context.Background())
}

// RunContext is Run with a context handed to every command.
func (a *App) RunContext(ctx context.Context) {
	if err := a.cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:           a.basename,
		Short:         a.name,
		Long:          a.description,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          a.args,
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.Flags().SortFlags = true
	cmd.PersistentPreRunE = a.loadOptions

	if a.runFunc != nil {
		cmd.RunE = func(*cobra.Command, []string) error { return a.runFunc() }
	}
	cmd.AddCommand(a.commands...)

	var namedFlagSets cliflag.NamedFlagSets
	if a.options != nil {
		namedFlagSets = a.options.Flags()
	}
	if !a.noConfig {
		addConfigFlag(namedFlagSets.FlagSet("global"), &a.configFile)
	}
	globalflag.AddGlobalFlags(namedFlagSets.FlagSet("global"), cmd.Name())
	for _, f := range namedFlagSets.FlagSets {
		cmd.PersistentFlags().AddFlagSet(f)
	}

	if !a.silence {
		usageFmt := "Usage:\n  %s\n"
		cmd.SetUsageFunc(func(cmd *cobra.Command) error {
			fmt.Fprintf(cmd.OutOrStderr(), usageFmt, cmd.UseLine())
			printCommands(cmd.OutOrStderr(), cmd)
			cliflag.PrintSections(cmd.OutOrStderr(), namedFlagSets, 0)
			return nil
		})
		cmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
			if cmd.Long != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n", cmd.Long)
			} else if cmd.Short != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n", cmd.Short)
			}
			fmt.Fprintf(cmd.OutOrStdout(), usageFmt, cmd.UseLine())
			printCommands(cmd.OutOrStdout(), cmd)
			cliflag.PrintSections(cmd.OutOrStdout(), namedFlagSets, 0)
			if local := cmd.LocalNonPersistentFlags(); local.HasFlags() {
				fmt.Fprintf(cmd.OutOrStdout(), "\nCommand flags:\n\n%s", local.FlagUsages())
			}
		})
	}

	a.cmd = cmd
}

func printCommands(w io.Writer, cmd *cobra.Command) {
	if !cmd.HasAvailableSubCommands() {
		return
	}
	fmt.Fprintf(w, "\nAvailable Commands:\n")
	for _, c := range cmd.Commands() {
		if c.IsAvailableCommand() {
			fmt.Fprintf(w, "  %-12s %s\n", c.Name(), c.Short)
		}
	}
	fmt.Fprintln(w)
}

// loadOptions merges config file, environment and flags into the options,
// then completes and validates them.
func (a *App) loadOptions(cmd *cobra.Command, _ []string) error {
	if !a.noConfig {
		v, err := newViper(cmd.Flags(), a.configFile)
		if err != nil {
			return err
		}
		a.viper = v
		if a.options != nil {
			if err := v.Unmarshal(a.options); err != nil {
				return fmt.Errorf("failed to decode configuration: %w", err)
			}
		}
	}

	if a.options != nil {
		if c, ok := a.options.(CompleteableOptions); ok {
			if err := c.Complete(); err != nil {
				return err
			}
		}
		if err := a.options.Validate(); err != nil {
			return err
		}
		if p, ok := a.options.(LogOptionsProvider); ok {
			log.Init(p.LogOptions())
		}
	}

	if a.viper != nil {
		watchLogLevel(a.viper)
	}
	return nil
}
