package cmd

import (
	"fmt"

	"github.com/hildam/harvey-go/entity/conf"
	"github.com/hildam/harvey-go/repo/hr"
	"github.com/spf13/cobra"
)

func newImportPoliciesCmd() *cobra.Command {
	var org string

	cmd := &cobra.Command{
		Use:   "import-policies <dir>",
		Short: "Import markdown policy documents into the HR store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := conf.GetCfg()
			if org == "" {
				org = cfg.HR.OrgID
			}
			return importPolicies(cmd, cfg.HR.DBPath, org, args[0])
		},
	}
	cmd.Flags().StringVar(&org, "org", "", "organization id, defaults to hr.org_id")
	return cmd
}

func importPolicies(cmd *cobra.Command, dbPath, org, dir string) error {
	store, err := hr.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open hr store: %w", err)
	}
	defer store.Close()

	n, err := store.ImportPolicyDir(cmd.Context(), org, dir)
	if err != nil {
		return fmt.Errorf("import policies: %w", err)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d sections into org %s\n", n, org)
	return err
}
