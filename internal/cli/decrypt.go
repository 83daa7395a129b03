package cli

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
)

// NewDecryptCommand creates the decrypt command group. Each subcommand opens
// a decryption request and prints its id; the oracle answers later.
func NewDecryptCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Request decryption of a civilization, action or aggregate",
		Long: `Open an asynchronous decryption request. The request id is printed
immediately; the cleartexts arrive through "civbuilder oracle fulfill" or
the relay loop of "civbuilder serve".`,
	}

	cmd.AddCommand(newDecryptSubcommand(rootOpts, "civ <civ-id>", "Request a civilization disclosure (owner only)", 1,
		func(ctx context.Context, a *app, caller ir.Identity, args []string) (*uint256.Int, error) {
			id, err := parseID("civ-id", args[0])
			if err != nil {
				return nil, err
			}
			return a.ledger.RequestCivDecryption(ctx, caller, id)
		}))

	cmd.AddCommand(newDecryptSubcommand(rootOpts, "action <civ-id> <index>", "Request an action disclosure (owner only)", 2,
		func(ctx context.Context, a *app, caller ir.Identity, args []string) (*uint256.Int, error) {
			id, err := parseID("civ-id", args[0])
			if err != nil {
				return nil, err
			}
			index, err := parseID("index", args[1])
			if err != nil {
				return nil, err
			}
			return a.ledger.RequestActionDecryption(ctx, caller, id, int(index))
		}))

	cmd.AddCommand(newDecryptSubcommand(rootOpts, "aggregate <key>", "Request an aggregate disclosure (admin only)", 1,
		func(ctx context.Context, a *app, caller ir.Identity, args []string) (*uint256.Int, error) {
			key, err := parseKey(args[0])
			if err != nil {
				return nil, err
			}
			return a.ledger.RequestAggregateDecryption(ctx, caller, key)
		}))

	return cmd
}

type requestFunc func(ctx context.Context, a *app, caller ir.Identity, args []string) (*uint256.Int, error)

func newDecryptSubcommand(rootOpts *RootOptions, use, short string, nargs int, request requestFunc) *cobra.Command {
	var caller string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return withApp(rootOpts, f, func(a *app) error {
				id, err := request(cmd.Context(), a, ir.Identity(caller), args)
				if err != nil {
					return err
				}
				return f.Success(newRequestOpened(id))
			})
		},
	}
	callerFlag(cmd, &caller)

	return cmd
}
