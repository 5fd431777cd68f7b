package cmd

import (
	"context"
	"errors"
	"fmt"

	"infoblox-sync/feature/sync"

	"github.com/spf13/cobra"
)

var (
	lookupFormat string
	lookupViews  bool
)

// lookupCmd prints the Infoblox records of a name or address, or the DNS views.
var lookupCmd = &cobra.Command{
	Use:   "lookup [name|ip]",
	Short: "Show host, A, PTR and lease records for a name or IP",
	Long: `Prints every host, A, PTR and DHCP lease object matching a name or address.
With --views the DNS views of the appliance are listed instead.

Examples:
  lookup web01.example.com
  lookup 10.220.0.101 --format json
  lookup --views`,
	Args: validateLookupArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.logger.Sync()

		client, err := a.infobloxClient()
		if err != nil {
			return err
		}

		ctx := context.Background()
		if lookupViews {
			views, err := client.GetDNSViews(ctx)
			if err != nil {
				return fmt.Errorf("failed to list dns views: %w", err)
			}
			return sync.Render(cmd.OutOrStdout(), lookupFormat, views)
		}

		res, err := client.Lookup(ctx, args[0])
		if err != nil {
			return fmt.Errorf("lookup %s failed: %w", args[0], err)
		}
		return sync.Render(cmd.OutOrStdout(), lookupFormat, res)
	},
}

// validateLookupArgs wants exactly one query, or none with --views.
func validateLookupArgs(cmd *cobra.Command, args []string) error {
	if lookupViews {
		if len(args) > 0 {
			return errors.New("--views takes no name or ip")
		}
		return nil
	}
	return cobra.ExactArgs(1)(cmd, args)
}

func init() {
	lookupCmd.Flags().StringVar(&lookupFormat, "format", sync.FormatYAML, "Output format (json, yaml)")
	lookupCmd.Flags().BoolVar(&lookupViews, "views", false, "List DNS views instead of looking up records")
	RootCmd.AddCommand(lookupCmd)
}
