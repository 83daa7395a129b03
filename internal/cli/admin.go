package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	var deployer string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the ledger database and seed the first admin",
		Long: `Create the ledger database (if needed) and make the deployer the first
admin. A ledger can be initialized exactly once.

Example:
  civbuilder init --db ./civ.db --deployer 0xdeployer`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return withApp(rootOpts, f, func(a *app) error {
				if err := a.ledger.Bootstrap(cmd.Context(), ir.Identity(deployer)); err != nil {
					return err
				}
				return f.Success(message{Message: fmt.Sprintf("ledger initialized at %s with admin %s", a.cfg.Database.Path, deployer)})
			})
		},
	}

	cmd.Flags().StringVar(&deployer, "deployer", "", "identity of the first admin (required)")
	_ = cmd.MarkFlagRequired("deployer")

	return cmd
}

// NewAdminCommand creates the admin command group.
func NewAdminCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage the admin set",
	}

	cmd.AddCommand(newAdminMutation(rootOpts, "add", "Grant admin rights to an identity"))
	cmd.AddCommand(newAdminMutation(rootOpts, "remove", "Revoke admin rights from an identity"))
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List admins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return withApp(rootOpts, f, func(a *app) error {
				admins, err := a.ledger.ListAdmins(cmd.Context())
				if err != nil {
					return err
				}
				return f.Success(adminList(admins))
			})
		},
	})

	return cmd
}

func newAdminMutation(rootOpts *RootOptions, verb, short string) *cobra.Command {
	var caller string

	cmd := &cobra.Command{
		Use:   verb + " <identity>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return withApp(rootOpts, f, func(a *app) error {
				identity := ir.Identity(args[0])
				var err error
				if verb == "add" {
					err = a.ledger.AddAdmin(cmd.Context(), ir.Identity(caller), identity)
				} else {
					err = a.ledger.RemoveAdmin(cmd.Context(), ir.Identity(caller), identity)
				}
				if err != nil {
					return err
				}
				return f.Success(message{Message: fmt.Sprintf("admin %s: %s", verb, identity)})
			})
		},
	}
	callerFlag(cmd, &caller)

	return cmd
}
