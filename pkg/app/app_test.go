package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/solar-synergy/dockrelay/pkg/log"
)

type demoOptions struct {
	Name     string        `mapstructure:"name"`
	Count    int           `mapstructure:"count"`
	Interval time.Duration `mapstructure:"interval"`
}

type testOptions struct {
	Demo *demoOptions `mapstructure:"demo"`
	Log  *log.Options `mapstructure:"log"`

	completed bool
}

func newTestOptions() *testOptions {
	return &testOptions{
		Demo: &demoOptions{Name: "flag-default", Count: 1, Interval: time.Second},
		Log:  log.NewOptions(),
	}
}

func (o *testOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	fs := fss.FlagSet("demo")
	fs.StringVar(&o.Demo.Name, "demo.name", o.Demo.Name, "name")
	fs.IntVar(&o.Demo.Count, "demo.count", o.Demo.Count, "count")
	fs.DurationVar(&o.Demo.Interval, "demo.interval", o.Demo.Interval, "interval")
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *testOptions) Complete() error {
	o.completed = true
	return nil
}

func (o *testOptions) Validate() error {
	var errs []error
	if o.Demo.Count < 0 {
		errs = append(errs, errors.New("--demo.count must not be negative"))
	}
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *testOptions) LogOptions() *log.Options { return o.Log }

func execute(t *testing.T, a *App, args ...string) error {
	t.Helper()
	a.Command().SetArgs(args)
	return a.Command().Execute()
}

func TestApp_FlagsEnvAndConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "relay.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("demo:\n  count: 7\n  interval: 3s\n"), 0o600))
	t.Setenv("DOCKRELAY_DEMO_NAME", "from-env")

	opts := newTestOptions()
	ran := false
	a := NewApp("demo", "Demo app",
		WithOptions(opts),
		WithDefaultValidArgs(),
		WithRunFunc(func() error {
			ran = true
			return nil
		}),
	)

	require.NoError(t, execute(t, a, "--config", cfg))
	assert.True(t, ran)
	assert.True(t, opts.completed)
	assert.Equal(t, "from-env", opts.Demo.Name)
	assert.Equal(t, 7, opts.Demo.Count)
	assert.Equal(t, 3*time.Second, opts.Demo.Interval)
	assert.NotNil(t, a.Viper())
}

func TestApp_ExplicitFlagWins(t *testing.T) {
	t.Setenv("DOCKRELAY_DEMO_NAME", "from-env")

	opts := newTestOptions()
	a := NewApp("demo", "Demo app", WithOptions(opts), WithRunFunc(func() error { return nil }))

	require.NoError(t, execute(t, a, "--demo.name", "from-flag"))
	assert.Equal(t, "from-flag", opts.Demo.Name)
}

func TestApp_ValidationFails(t *testing.T) {
	opts := newTestOptions()
	ran := false
	a := NewApp("demo", "Demo app", WithOptions(opts), WithRunFunc(func() error {
		ran = true
		return nil
	}))

	err := execute(t, a, "--demo.count", "-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--demo.count")
	assert.False(t, ran)
}

func TestApp_RejectsPositionalArgs(t *testing.T) {
	a := NewApp("demo", "Demo app",
		WithOptions(newTestOptions()),
		WithDefaultValidArgs(),
		WithRunFunc(func() error { return nil }),
	)
	assert.Error(t, execute(t, a, "extra"))
}

func TestApp_SubcommandsInheritOptions(t *testing.T) {
	opts := newTestOptions()
	var got string
	sub := &cobra.Command{
		Use: "show",
		RunE: func(*cobra.Command, []string) error {
			got = opts.Demo.Name
			return nil
		},
	}
	a := NewApp("demo", "Demo app", WithOptions(opts), WithCommands(sub), WithNoConfig())

	require.NoError(t, execute(t, a, "show", "--demo.name", "sub"))
	assert.Equal(t, "sub", got)
	assert.Nil(t, a.Viper())
}

func TestApp_MissingConfigFile(t *testing.T) {
	a := NewApp("demo", "Demo app", WithOptions(newTestOptions()), WithRunFunc(func() error { return nil }))
	err := execute(t, a, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read configuration file")
}
