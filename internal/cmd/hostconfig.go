package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var setClusterNameCmd = &cobra.Command{
	Use:   "set-cluster-name <name>",
	Short: "Set this host's cluster_name in sbatchman.conf",
	Args:  cobra.ExactArgs(1),
	RunE:  runSetClusterName,
}

var getClusterNameCmd = &cobra.Command{
	Use:   "get-cluster-name",
	Short: "Print this host's cluster_name from sbatchman.conf",
	Args:  cobra.NoArgs,
	RunE:  runGetClusterName,
}

func init() {
	rootCmd.AddCommand(setClusterNameCmd)
	rootCmd.AddCommand(getClusterNameCmd)
}

func runSetClusterName(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.hostConfig.SetClusterName(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "cluster_name set to %q\n", args[0])
	return nil
}

func runGetClusterName(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintln(cmd.OutOrStdout(), a.hostConfig.GetClusterName())
	return nil
}
