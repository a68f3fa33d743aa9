package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/JonMunkholm/facturador/internal/core"
	"github.com/spf13/cobra"
)

func newIssueCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "issue FILE",
		Short: "Parse a spreadsheet and issue every row",
		Long: `Parse FILE and submit each invoice to the issuance service in file order,
waiting for each response before sending the next. A failed row does not stop
the run. Failed rows can be fixed and sent again; they get a new idempotency key.

The command exits with status 1 if any row failed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.issuer()
			if err != nil {
				return err
			}

			jr, closeJournal, err := opts.openJournal(cmd.Context())
			if err != nil {
				return err
			}
			defer closeJournal()

			var recorders []core.Recorder
			if jr != nil {
				recorders = append(recorders, jr)
			}

			batch, _, err := opts.loadBatch(cmd, args[0], client, recorders...)
			if err != nil {
				return err
			}
			printWarnings(cmd.ErrOrStderr(), batch.Warnings())

			counts, err := batch.SubmitAll(cmd.Context())
			if err != nil {
				return err
			}

			printOutcomes(cmd.OutOrStdout(), batch.Rows())
			fmt.Fprintf(cmd.OutOrStdout(), "\nTotal: %d  Emitidas: %d  Con error: %d  Pendientes: %d\n",
				counts.Total, counts.Success, counts.Error, counts.Pending)

			if counts.Error > 0 {
				return fmt.Errorf("%d de %d filas no se pudieron emitir", counts.Error, counts.Total)
			}
			return nil
		},
	}
}

func printOutcomes(w io.Writer, rows []core.ParsedRow) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILA\tDESCRIPCION\tESTADO\tDETALLE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.SourceRow, r.Payload.Draft.Item.Description, r.Status, r.Message)
	}
	tw.Flush()
}
