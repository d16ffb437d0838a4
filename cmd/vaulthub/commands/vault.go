package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stvaults/vaulthub/config"
	"github.com/stvaults/vaulthub/internal/store"
	"github.com/stvaults/vaulthub/types"
)

// MakeVaultCommand returns commands that read vault records straight from
// the node database. The node must not be running.
func MakeVaultCommand(conf *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Inspect stored vault records",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List connected vaults",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				st, err := openStore(conf)
				if err != nil {
					return err
				}
				defer st.Close()

				vaults, err := st.Vaults()
				if err != nil {
					return err
				}
				for _, v := range vaults {
					fmt.Fprintln(cmd.OutOrStdout(), v.Hex())
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "show [address]",
			Short: "Print a vault's connection, record and quarantine",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				addr, err := config.ParseAddress(args[0])
				if err != nil {
					return err
				}
				st, err := openStore(conf)
				if err != nil {
					return err
				}
				defer st.Close()

				v, ok, err := st.LoadVault(addr)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w: %s", types.ErrVaultNotConnected, addr)
				}
				return writeJSON(cmd, v)
			},
		},
	)
	return cmd
}

func openStore(conf *config.Config) (*store.Store, error) {
	db, err := config.DefaultDBProvider(&config.DBContext{ID: "vaulthub", Config: conf})
	if err != nil {
		return nil, err
	}
	return store.NewStore(db), nil
}
