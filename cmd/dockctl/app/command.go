package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/solar-synergy/dockrelay/cmd/dockctl/app/options"
	"github.com/solar-synergy/dockrelay/internal/issuer"
	"github.com/solar-synergy/dockrelay/pkg/dock"
)

// newCommandCmd builds "lock" or "unlock".
func newCommandCmd(opts *options.CtlOptions, state dock.State) *cobra.Command {
	var (
		wait      time.Duration
		ifVersion uint64
		requestID string
	)

	verb := strings.ToLower(state.Token())
	cmd := &cobra.Command{
		Use:   verb,
		Short: fmt.Sprintf("Command the dock to %s", verb),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(opts, nil)
			if err != nil {
				return err
			}

			var issueOpts []issuer.IssueOption
			if cmd.Flags().Changed("if-version") {
				issueOpts = append(issueOpts, issuer.WithIfVersion(ifVersion))
			}
			if requestID != "" {
				issueOpts = append(issueOpts, issuer.WithRequestID(requestID))
			}

			res, err := c.Issue(cmd.Context(), state, issueOpts...)
			if err != nil {
				return userError(err, "Command failed")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s accepted (version %d)\n", res.DockID, res.NewState, res.Version)

			if wait <= 0 {
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), wait)
			defer cancel()
			view, err := c.AwaitApplied(ctx, res.DockID, res.Version, time.Second)
			switch {
			case err == nil:
				fmt.Fprintf(cmd.OutOrStdout(), "%s: controller applied %s (version %d)\n", view.DockID, view.Applied.State.Token(), view.Applied.Version)
				return nil
			case errors.Is(err, issuer.ErrDiverged):
				return fmt.Errorf("%s: superseded by version %d before it was applied", res.DockID, view.Version)
			default:
				return fmt.Errorf("%s: not applied within %s", res.DockID, wait)
			}
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 0, "Wait up to this long for the controller to acknowledge the command.")
	cmd.Flags().Uint64Var(&ifVersion, "if-version", 0, "Only apply if the dock is still at this version.")
	cmd.Flags().StringVar(&requestID, "request-id", "", "Reuse a request id to safely retry a write whose outcome is unknown.")
	return cmd
}

func newAckCmd(opts *options.CtlOptions) *cobra.Command {
	var version uint64

	cmd := &cobra.Command{
		Use:   "ack LOCK|UNLOCK",
		Short: "Report a command as applied, as a dock controller would",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := dock.ParseToken(args[0])
			if err != nil {
				return err
			}
			c, err := newClient(opts, nil)
			if err != nil {
				return err
			}

			view, err := c.Ack(cmd.Context(), state, version)
			if err != nil {
				return userError(err, "Ack failed")
			}
			if view.Applied == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ack ignored, dock is at %s (version %d)\n", view.DockID, view.Command, view.Version)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: applied %s (version %d, converged %t)\n",
				view.DockID, view.Applied.State.Token(), view.Applied.Version, view.Converged)
			return nil
		},
	}

	cmd.Flags().Uint64Var(&version, "version", 0, "Version being acknowledged. 0 acknowledges the current command.")
	return cmd
}
