package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agrisense/maizeguard/internal/boundary"
	"github.com/agrisense/maizeguard/internal/ingest"
	"github.com/agrisense/maizeguard/internal/model"
)

var farmsCmd = &cobra.Command{
	Use:   "farms",
	Short: "Manage farm boundaries",
}

var farmsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List farm boundaries for a grower",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		grower, _ := cmd.Flags().GetString("grower")
		if grower == "" {
			return eris.New("--grower is required")
		}

		farms, err := ingest.New(st).ListFarms(ctx, grower)
		if err != nil {
			return eris.Wrap(err, "farms list")
		}

		if len(farms) == 0 {
			fmt.Fprintln(os.Stderr, "No farms found.")
			return nil
		}

		formatFarmsList(os.Stdout, farms)
		return nil
	},
}

// farms import loads polygon boundaries from an ESRI shapefile, one farm
// per polygon record.
var farmsImportCmd = &cobra.Command{
	Use:   "import <shapefile>",
	Short: "Import farm boundaries from a shapefile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		grower, _ := cmd.Flags().GetString("grower")
		if grower == "" {
			return eris.New("--grower is required")
		}
		nameField, _ := cmd.Flags().GetString("name-field")

		named, err := boundary.ReadShapefile(args[0], nameField)
		if err != nil {
			return err
		}
		if len(named) == 0 {
			return eris.Errorf("no polygon records in %s", args[0])
		}

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		svc := ingest.New(st)
		imported := 0
		for _, n := range named {
			if err := svc.SaveFarm(ctx, grower, n.Name, n.Boundary); err != nil {
				zap.L().Warn("farm import skipped",
					zap.String("farm", n.Name),
					zap.Error(err),
				)
				continue
			}
			imported++
		}

		fmt.Printf("Imported %d of %d farms for %s\n", imported, len(named), grower)
		return nil
	},
}

func formatFarmsList(out io.Writer, farms []model.FarmBoundary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "GROWER\tFARM\tUPDATED")
	_, _ = fmt.Fprintln(w, "------\t----\t-------")

	for _, f := range farms {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n",
			f.GrowerID,
			f.FarmName,
			f.UpdatedAt.Format(time.RFC3339),
		)
	}
	_ = w.Flush()
}

func init() {
	farmsListCmd.Flags().String("grower", "", "grower id")

	farmsImportCmd.Flags().String("grower", "", "grower id to attach the farms to")
	farmsImportCmd.Flags().String("name-field", "NAME", "attribute field holding the farm name")

	farmsCmd.AddCommand(farmsListCmd)
	farmsCmd.AddCommand(farmsImportCmd)
	rootCmd.AddCommand(farmsCmd)
}
