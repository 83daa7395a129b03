package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
)

// NewAggregateCommand creates the aggregate command group.
func NewAggregateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Maintain keyed world aggregates",
	}
	cmd.AddCommand(newAggregateUpdateCommand(rootOpts))
	cmd.AddCommand(newAggregateRemoveCommand(rootOpts))
	cmd.AddCommand(newAggregateListCommand(rootOpts))
	cmd.AddCommand(newAggregateGetCommand(rootOpts))
	return cmd
}

func newAggregateUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var caller, resource, civs string

	cmd := &cobra.Command{
		Use:   "update <key>",
		Short: "Fold encrypted deltas into an aggregate (admin only)",
		Long: `Add an encrypted resource delta and active-civilization delta to the
aggregate stored under key, creating it at zero first if needed.

Example:
  civbuilder aggregate update region-1 --as 0xdeployer --resource 50 --civs 1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return withApp(rootOpts, f, func(a *app) error {
				key, err := parseKey(args[0])
				if err != nil {
					return err
				}
				resourceHandle, err := a.encryptValue("resource", resource)
				if err != nil {
					return err
				}
				civsHandle, err := a.encryptValue("civs", civs)
				if err != nil {
					return err
				}
				if err := a.ledger.UpdateWorldAggregate(cmd.Context(), ir.Identity(caller), key, resourceHandle, civsHandle); err != nil {
					return err
				}
				return f.Success(message{Message: fmt.Sprintf("aggregate %s updated", key.Label())})
			})
		},
	}

	callerFlag(cmd, &caller)
	cmd.Flags().StringVar(&resource, "resource", "0", "global resource delta")
	cmd.Flags().StringVar(&civs, "civs", "0", "active civilizations delta")

	return cmd
}

type aggregateRemoved struct {
	Key     string `json:"key"`
	Removed bool   `json:"removed"`
}

func (r aggregateRemoved) String() string {
	if r.Removed {
		return fmt.Sprintf("aggregate %s removed", r.Key)
	}
	return fmt.Sprintf("aggregate %s not present", r.Key)
}

func newAggregateRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	var caller string

	cmd := &cobra.Command{
		Use:   "remove <key>",
		Short: "Remove an aggregate and its index entry (admin only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return withApp(rootOpts, f, func(a *app) error {
				key, err := parseKey(args[0])
				if err != nil {
					return err
				}
				removed, err := a.ledger.AdminRemoveAggregate(cmd.Context(), ir.Identity(caller), key)
				if err != nil {
					return err
				}
				return f.Success(aggregateRemoved{Key: key.Label(), Removed: removed})
			})
		},
	}
	callerFlag(cmd, &caller)

	return cmd
}

type keyList []string

func (l keyList) String() string {
	if len(l) == 0 {
		return "no aggregates"
	}
	return strings.Join(l, "\n")
}

func newAggregateListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List aggregate keys in index order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return withApp(rootOpts, f, func(a *app) error {
				keys, err := a.ledger.ListAggregateKeys(cmd.Context())
				if err != nil {
					return err
				}
				labels := make(keyList, len(keys))
				for i, k := range keys {
					labels[i] = k.Label()
				}
				return f.Success(labels)
			})
		},
	}
}

func newAggregateGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Show an aggregate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return withApp(rootOpts, f, func(a *app) error {
				key, err := parseKey(args[0])
				if err != nil {
					return err
				}
				agg, err := a.ledger.GetAggregate(cmd.Context(), key)
				if err != nil {
					return err
				}
				return f.Success(newAggregateView(agg))
			})
		},
	}
}
