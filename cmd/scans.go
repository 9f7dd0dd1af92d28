package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/agrisense/maizeguard/internal/ingest"
	"github.com/agrisense/maizeguard/internal/model"
)

var scansCmd = &cobra.Command{
	Use:   "scans",
	Short: "Inspect scan history",
}

var scansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded scans, most recent first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		grower, _ := cmd.Flags().GetString("grower")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		scans, err := ingest.New(st).ListScans(ctx, grower, limit)
		if err != nil {
			return eris.Wrap(err, "scans list")
		}

		if len(scans) == 0 {
			fmt.Fprintln(os.Stderr, "No scans found.")
			return nil
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(scans)
		}

		formatScansList(os.Stdout, scans)
		return nil
	},
}

func formatScansList(out io.Writer, scans []model.ScanRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTIMESTAMP\tGROWER\tPREDICTION\tCONFIDENCE\tRISK")
	_, _ = fmt.Fprintln(w, "--\t---------\t------\t----------\t----------\t----")

	for _, s := range scans {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.4f\t%s\n",
			s.ID,
			s.Timestamp.Format(time.RFC3339),
			s.GrowerID,
			s.Label,
			s.Confidence,
			s.Risk,
		)
	}
	_ = w.Flush()
}

func init() {
	scansListCmd.Flags().String("grower", "", "filter by grower id")
	scansListCmd.Flags().Int("limit", 50, "max scans to list")
	scansListCmd.Flags().Bool("json", false, "output as JSON")

	scansCmd.AddCommand(scansListCmd)
	rootCmd.AddCommand(scansCmd)
}
