package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
)

// NewCivCommand creates the civ command group.
func NewCivCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "civ",
		Short: "Submit and inspect civilizations",
	}
	cmd.AddCommand(newCivSubmitCommand(rootOpts))
	cmd.AddCommand(newCivGetCommand(rootOpts))
	cmd.AddCommand(newCivListCommand(rootOpts))
	return cmd
}

type civSubmitted struct {
	CivID uint64 `json:"civ_id"`
}

func (c civSubmitted) String() string { return fmt.Sprintf("civilization %d submitted", c.CivID) }

func newCivSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		caller string
		values = map[string]*string{}
	)
	attrs := []string{"resource", "tech", "military", "population"}

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a civilization",
		Long: `Submit a civilization. Attribute values are encrypted with the devnet
engine before they reach the ledger.

Example:
  civbuilder civ submit --as 0xalice --resource 10 --tech 2 --military 5 --population 100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return withApp(rootOpts, f, func(a *app) error {
				handles := make([]ir.Handle, len(attrs))
				for i, name := range attrs {
					h, err := a.encryptValue(name, *values[name])
					if err != nil {
						return err
					}
					handles[i] = h
				}
				id, err := a.ledger.SubmitCivilization(cmd.Context(), ir.Identity(caller),
					handles[0], handles[1], handles[2], handles[3])
				if err != nil {
					return err
				}
				return f.Success(civSubmitted{CivID: id})
			})
		},
	}

	callerFlag(cmd, &caller)
	for _, name := range attrs {
		values[name] = cmd.Flags().String(name, "", name+" plaintext (required)")
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func newCivGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <civ-id>",
		Short: "Show a civilization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return withApp(rootOpts, f, func(a *app) error {
				id, err := parseID("civ-id", args[0])
				if err != nil {
					return err
				}
				civ, err := a.ledger.GetCiv(cmd.Context(), id)
				if err != nil {
					return err
				}
				actions, err := a.ledger.ListActions(cmd.Context(), id)
				if err != nil {
					return err
				}
				return f.Success(newCivView(civ, len(actions)))
			})
		},
	}
}

type civIDList struct {
	Owner string   `json:"owner"`
	IDs   []uint64 `json:"civ_ids"`
}

func (l civIDList) String() string {
	if len(l.IDs) == 0 {
		return fmt.Sprintf("%s owns no civilizations", l.Owner)
	}
	return fmt.Sprintf("%s owns %v", l.Owner, l.IDs)
}

func newCivListCommand(rootOpts *RootOptions) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the civilizations of an owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return withApp(rootOpts, f, func(a *app) error {
				ids, err := a.ledger.GetOwnerCivilizations(cmd.Context(), ir.Identity(owner))
				if err != nil {
					return err
				}
				return f.Success(civIDList{Owner: owner, IDs: ids})
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner identity (required)")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

// NewActionCommand creates the action command group.
func NewActionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "action",
		Short: "Append to and inspect civilization action logs",
	}
	cmd.AddCommand(newActionSubmitCommand(rootOpts))
	cmd.AddCommand(newActionListCommand(rootOpts))
	return cmd
}

type actionSubmitted struct {
	ActionID uint64 `json:"action_id"`
}

func (a actionSubmitted) String() string { return fmt.Sprintf("action %d submitted", a.ActionID) }

func newActionSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		caller     string
		civID      uint64
		turn       uint64
		actionType string
		payload    string
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Append an action to a civilization you own",
		Long: `Append an action to a civilization. The action type and payload are
encrypted with the devnet engine; the turn number is public.

Example:
  civbuilder action submit --as 0xalice --civ 1 --type 3 --payload 30 --turn 1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return withApp(rootOpts, f, func(a *app) error {
				typeHandle, err := a.encryptValue("type", actionType)
				if err != nil {
					return err
				}
				payloadHandle, err := a.encryptValue("payload", payload)
				if err != nil {
					return err
				}
				id, err := a.ledger.SubmitAction(cmd.Context(), ir.Identity(caller), civID, typeHandle, payloadHandle, turn)
				if err != nil {
					return err
				}
				return f.Success(actionSubmitted{ActionID: id})
			})
		},
	}

	callerFlag(cmd, &caller)
	cmd.Flags().Uint64Var(&civID, "civ", 0, "civilization id (required)")
	cmd.Flags().Uint64Var(&turn, "turn", 0, "turn number")
	cmd.Flags().StringVar(&actionType, "type", "", "action type plaintext (required)")
	cmd.Flags().StringVar(&payload, "payload", "", "payload plaintext (required)")
	_ = cmd.MarkFlagRequired("civ")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("payload")

	return cmd
}

func newActionListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <civ-id>",
		Short: "List a civilization's actions in log order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return withApp(rootOpts, f, func(a *app) error {
				id, err := parseID("civ-id", args[0])
				if err != nil {
					return err
				}
				actions, err := a.ledger.ListActions(cmd.Context(), id)
				if err != nil {
					return err
				}
				return f.Success(newActionList(actions))
			})
		},
	}
}

func parseID(name, s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid %s %q", name, s))
	}
	return n, nil
}
