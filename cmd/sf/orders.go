package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/msaseller/storefront/internal/config"
	"github.com/msaseller/storefront/internal/orders"
)

func newOrdersCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect the order log",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "storefront.yaml", "path to config file")

	cmd.AddCommand(newOrdersListCmd(&configPath))
	cmd.AddCommand(newOrdersCountCmd(&configPath))
	return cmd
}

func newOrdersListCmd(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show recent orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			gormDB, err := connectDB(cfg)
			if err != nil {
				return err
			}
			recent, err := orders.Recent(gormDB, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(recent) == 0 {
				fmt.Fprintln(out, "no orders yet")
				return nil
			}
			for _, o := range recent {
				fmt.Fprintf(out, "#%d  %s  %s (%s)  %d items  %d ₽\n",
					o.ID, o.CreatedAt.Format("2006-01-02 15:04"), o.UserName, o.Platform,
					len(o.Items), o.TotalMinor)
				for _, it := range o.Items {
					fmt.Fprintf(out, "    %d. %s  %s\n", it.Position, it.Name, it.Price)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "max orders to show")
	return cmd
}

func newOrdersCountCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the total number of logged orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			gormDB, err := connectDB(cfg)
			if err != nil {
				return err
			}
			n, err := orders.Count(gormDB)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\n", n)
			return nil
		},
	}
}
