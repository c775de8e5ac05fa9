package app

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/solar-synergy/dockrelay/cmd/dockctl/app/options"
	"github.com/solar-synergy/dockrelay/internal/issuer"
	"github.com/solar-synergy/dockrelay/pkg/dock"
)

func newGetCmd(opts *options.CtlOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the dock's current command token, as its controller sees it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(opts, nil)
			if err != nil {
				return err
			}
			token, err := c.Token(cmd.Context())
			if err != nil {
				return userError(err, "Read failed")
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

func newStatusCmd(opts *options.CtlOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show relay connectivity and every known dock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(opts, nil)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			state := c.PollStatus(cmd.Context())
			fmt.Fprintf(out, "Relay %s: %s\n\n", opts.ClientOptions.Server, state)
			if state != issuer.Online {
				return nil
			}

			docks, err := c.List(cmd.Context())
			if err != nil {
				return userError(err, "List failed")
			}
			fmt.Fprintln(out, dockTable(docks))
			return nil
		},
	}
}

func dockTable(docks []dock.View) *uitable.Table {
	table := uitable.New()
	table.MaxColWidth = 40
	table.AddRow("DOCK", "COMMAND", "VERSION", "UPDATED", "BY", "APPLIED", "CONVERGED", "STALE")
	for _, d := range docks {
		updated, applied := "-", "-"
		if !d.UpdatedAt.IsZero() {
			updated = d.UpdatedAt.Local().Format(time.DateTime)
		}
		if d.Applied != nil {
			applied = fmt.Sprintf("%s@%d", d.Applied.State.Token(), d.Applied.Version)
		}
		by := d.UpdatedBy
		if by == "" {
			by = "-"
		}
		table.AddRow(d.DockID, d.Command, strconv.FormatUint(d.Version, 10), updated, by, applied,
			strconv.FormatBool(d.Converged), strconv.FormatBool(d.Stale))
	}
	return table
}

func newWatchCmd(opts *options.CtlOptions) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the relay and report connectivity changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			c, err := newClient(opts, func(from, to issuer.Connectivity) {
				switch to {
				case issuer.Online:
					fmt.Fprintf(out, "%s relay ONLINE (was %s)\n", time.Now().Format(time.TimeOnly), from)
				case issuer.Offline:
					fmt.Fprintf(out, "%s relay OFFLINE (was %s): check the hub connection\n", time.Now().Format(time.TimeOnly), from)
				}
			})
			if err != nil {
				return err
			}
			return c.Watch(cmd.Context(), interval, nil)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", issuer.DefaultWatchInterval, "Time between polls.")
	return cmd
}
