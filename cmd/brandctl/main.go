// brandctl is the operator CLI: provider connectivity checks, brand catalog
// inspection, and local placeholder rendering, sharing the service's internal
// packages.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"server/internal/brands"
	"server/internal/imagegen"
	"server/internal/infra"
	"server/internal/providers/replicate"
)

const version = "0.1.0"

func main() {
	if err := fang.Execute(
		context.Background(),
		newRootCmd(),
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "brandctl",
		Short: "Operator tooling for the brand image service",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
	}
	cmd.AddCommand(newProbeCmd(), newBrandsCmd(), newPlaceholderCmd())
	return cmd
}

// newProbeCmd checks whether the image provider accepts our credentials.
// A block here is the first thing to rule out when every generation fails.
func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check image provider connectivity and credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := infra.LoadConfig()
			if err != nil {
				return err
			}
			client := replicate.NewClient(replicate.Options{
				APIToken: cfg.ReplicateAPIToken,
				BaseURL:  cfg.ReplicateBaseURL,
				Model:    cfg.ReplicateModel,
			})
			if !client.HasCredentials() {
				return fmt.Errorf("REPLICATE_API_TOKEN is not set")
			}
			if err := client.Probe(cmd.Context()); err != nil {
				return fmt.Errorf("probe failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "provider reachable, model %s\n", client.Model())
			return nil
		},
	}
}

func newBrandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "brands",
		Short: "List the brand catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := infra.LoadConfig()
			if err != nil {
				return err
			}
			catalog, err := brands.Load(cfg.BrandCatalogPath)
			if err != nil {
				return err
			}
			for _, b := range catalog.List() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-16s %s\n", b.ID, b.Name, b.Tagline)
			}
			return nil
		},
	}
}

func newPlaceholderCmd() *cobra.Command {
	var brandID string
	var out string
	var slot int
	cmd := &cobra.Command{
		Use:   "placeholder",
		Short: "Render one placeholder image locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := infra.LoadConfig()
			if err != nil {
				return err
			}
			catalog, err := brands.Load(cfg.BrandCatalogPath)
			if err != nil {
				return err
			}
			brand, ok := catalog.ByID(brandID)
			if !ok {
				return fmt.Errorf("unknown brand %q", brandID)
			}
			data := imagegen.RenderPlaceholder(brand, slot)
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&brandID, "brand", "nike", "brand id from the catalog")
	cmd.Flags().StringVar(&out, "out", "placeholder.png", "output file")
	cmd.Flags().IntVar(&slot, "slot", 1, "variation slot encoded in the image")
	return cmd
}
