package cmd

import (
	"context"
	"errors"
	"fmt"

	"infoblox-sync/feature/infoblox"
	"infoblox-sync/feature/ipam"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	allocateNetwork string
	allocateMAC     string
	allocateReserve bool
)

// allocateCmd finds, and optionally reserves, the next free address of a network.
var allocateCmd = &cobra.Command{
	Use:   "allocate",
	Short: "Find the next available IP of an Infoblox network",
	Long: `Asks Infoblox for the next available address of a network.
With --reserve the address is claimed as a fixed address bound to --mac.

Examples:
  allocate --network 10.220.0.0/22
  allocate --network 10.220.0.0/22 --reserve --mac aa:bb:cc:dd:ee:ff`,
	RunE: runAllocate,
}

func init() {
	allocateCmd.Flags().StringVar(&allocateNetwork, "network", "", "Network CIDR to allocate from")
	allocateCmd.Flags().StringVar(&allocateMAC, "mac", "00:00:00:00:00:00", "MAC address of the fixed address (with --reserve)")
	allocateCmd.Flags().BoolVar(&allocateReserve, "reserve", false, "Reserve the address as a fixed address")
	_ = allocateCmd.MarkFlagRequired("network")
	RootCmd.AddCommand(allocateCmd)
}

func runAllocate(cmd *cobra.Command, args []string) error {
	network, err := ipam.CanonicalNetwork(allocateNetwork)
	if err != nil {
		return err
	}

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
	var ip string
	if allocateReserve {
		ip, err = client.ReserveFixedAddress(ctx, network, allocateMAC)
	} else {
		ip, err = client.NextAvailableIP(ctx, network)
	}
	if errors.Is(err, infoblox.ErrNoAvailableIP) {
		return fmt.Errorf("network %s is full", network)
	}
	if err != nil {
		return fmt.Errorf("failed to allocate from %s: %w", network, err)
	}

	a.logger.Info("Allocated address",
		zap.String("network", network),
		zap.String("ip", ip),
		zap.Bool("reserved", allocateReserve))
	fmt.Fprintln(cmd.OutOrStdout(), ip)
	return nil
}
