package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/msaseller/storefront/internal/catalog"
	"github.com/msaseller/storefront/internal/config"
)

func newCatalogCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the product catalog",
		Long:  "Reads the configured sheet and prints what the bot would serve.",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "storefront.yaml", "path to config file")

	cmd.AddCommand(newCatalogCategoriesCmd(&configPath))
	cmd.AddCommand(newCatalogShowCmd(&configPath))
	return cmd
}

func newCatalogCategoriesCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List catalog categories with item counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := warmIndex(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range index.Categories() {
				items := 0
				for _, v := range index.ViewsFor(name) {
					items += v.ItemCount()
				}
				fmt.Fprintf(out, "%-30s %d\n", name, items)
			}
			categories, products := index.Stats()
			fmt.Fprintf(out, "\n%d categories, %d products\n", categories, products)
			return nil
		},
	}
}

func newCatalogShowCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <category>",
		Short: "Print the rendered blocks for a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := warmIndex(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			views := index.ViewsFor(args[0])
			if len(views) == 0 {
				return fmt.Errorf("category %q has no items", args[0])
			}
			out := cmd.OutOrStdout()
			for i, v := range views {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintln(out, v.Text)
			}
			return nil
		},
	}
}

// warmIndex builds and warms a fresh index from the configured source.
func warmIndex(ctx context.Context, configPath string) (*catalog.Index, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	src, err := buildSource(cfg)
	if err != nil {
		return nil, err
	}
	index, err := catalog.NewIndex(catalog.IndexOpts{Source: src, TTL: cfg.CatalogTTL()})
	if err != nil {
		return nil, err
	}
	if err := index.Warm(ctx, true); err != nil {
		return nil, err
	}
	return index, nil
}
