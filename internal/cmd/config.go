package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/3leaps/sbatchman/pkg/model"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage per-cluster configs",
}

var (
	configFlags []string
	configEnv   []string
)

var configAddCmd = &cobra.Command{
	Use:   "add <cluster> <config-name>",
	Short: "Create or replace a cluster config",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigAdd,
}

var configGetCmd = &cobra.Command{
	Use:   "get <cluster> <config-name>",
	Short: "Show a cluster config's flags and env",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigGet,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configAddCmd)
	configCmd.AddCommand(configGetCmd)

	configAddCmd.Flags().StringArrayVar(&configFlags, "flag", nil, "scheduler submission flag, repeatable (e.g. --flag=--partition=gpu)")
	configAddCmd.Flags().StringArrayVar(&configEnv, "env", nil, "environment variable NAME=VALUE, repeatable")
}

func runConfigAdd(cmd *cobra.Command, args []string) error {
	clusterName, configName := args[0], args[1]

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cluster, err := a.store.GetClusterByName(ctx, clusterName)
	if err != nil {
		return err
	}

	c, err := a.store.UpsertConfig(ctx, model.Config{
		ConfigName: configName,
		ClusterID:  cluster.ID,
		Flags:      configFlags,
		Env:        configEnv,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "config %q on cluster %q (id=%d)\n", c.ConfigName, cluster.ClusterName, c.ID)
	return nil
}

// runConfigGet implements the library surface's get_cluster_config (spec §6).
func runConfigGet(cmd *cobra.Command, args []string) error {
	clusterName, configName := args[0], args[1]

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	c, err := a.store.GetConfig(ctx, clusterName, configName)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "flags: %s\nenv: %s\n", strings.Join(c.Flags, " "), strings.Join(c.Env, " "))
	return nil
}
