package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jmcleod/tablehand/backoffice"
	"github.com/jmcleod/tablehand/session"
)

var saleFilter backoffice.SaleFilter

var salesCmd = &cobra.Command{
	Use:   "sales",
	Short: "Inspect sales",
}

var salesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sales",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(c *client, _ session.Session) error {
			sales, err := c.office.Sales.List(cmd.Context(), saleFilter)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(sales))
			for _, s := range sales {
				rows = append(rows, []string{
					s.ID, dash(s.TableID), s.Status, money(s.Total), money(s.Paid),
					s.OpenedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			return table(cmd.OutOrStdout(), []string{"ID", "TABLE", "STATUS", "TOTAL", "PAID", "OPENED"}, rows)
		})
	},
}

func init() {
	rootCmd.AddCommand(salesCmd)
	salesCmd.AddCommand(salesListCmd)
	salesListCmd.Flags().StringVar(&saleFilter.Status, "status", "", "open, closed or cancelled")
	salesListCmd.Flags().StringVar(&saleFilter.TableID, "table", "", "Only sales of this table")
	salesListCmd.Flags().StringVar(&saleFilter.Date, "date", "", "Only sales opened on this day (YYYY-MM-DD)")
}
