package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/JonMunkholm/facturador/internal/core"
	"github.com/JonMunkholm/facturador/internal/spreadsheet"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type previewOutput struct {
	File     string           `json:"file"`
	Rows     []core.ParsedRow `json:"rows"`
	Warnings []string         `json:"warnings"`
}

func newPreviewCommand(opts *options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "preview FILE",
		Short: "Parse a spreadsheet and print the invoices it would issue",
		Long: `Parse FILE (xlsx or csv) with the same rules used for issuance and print
one line per invoice plus every warning. Nothing is sent.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, name, err := opts.loadBatch(cmd, args[0], nil)
			if err != nil {
				return err
			}

			out := previewOutput{File: name, Rows: batch.Rows(), Warnings: batch.Warnings()}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			printRows(cmd.OutOrStdout(), out.Rows)
			printWarnings(cmd.OutOrStdout(), out.Warnings)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print rows and warnings as JSON")
	return cmd
}

// loadBatch parses path into a fresh batch. issuer may be nil for previews.
func (o *options) loadBatch(cmd *cobra.Command, path string, issuer core.Issuer, recorders ...core.Recorder) (*core.Batch, string, error) {
	aliases, err := o.aliases()
	if err != nil {
		return nil, "", err
	}
	name, data, err := o.readSpreadsheet(path)
	if err != nil {
		return nil, "", err
	}

	batch := core.NewBatch(core.BatchConfig{
		SessionID: uuid.NewString(),
		Decoder:   spreadsheet.New(),
		Assembler: core.NewAssembler(core.WithAliases(aliases)),
		Issuer:    issuer,
		Recorder:  core.Recorders(recorders),
	})
	if _, err := batch.Load(cmd.Context(), name, data); err != nil {
		return nil, "", fmt.Errorf("%s: %s", name, core.FormatUserError(err))
	}
	return batch, name, nil
}

func printRows(w io.Writer, rows []core.ParsedRow) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILA\tPV\tCONCEPTO\tDESCRIPCION\tCANT\tPRECIO\tIVA\tRECEPTOR\tESTADO")
	for _, r := range rows {
		d := r.Payload.Draft
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s %s\t%s\n",
			r.SourceRow,
			d.PointOfSale,
			d.Concept,
			d.Item.Description,
			d.Item.Quantity.String(),
			d.Item.UnitPrice.String(),
			d.Item.VAT,
			d.Recipient.DocumentType,
			d.Recipient.DocumentNumber,
			r.Status,
		)
	}
	tw.Flush()
}

func printWarnings(w io.Writer, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintf(w, "\nAdvertencias (%d):\n", len(warnings))
	for _, msg := range warnings {
		fmt.Fprintf(w, "  - %s\n", msg)
	}
}
