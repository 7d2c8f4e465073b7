package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jmcleod/tablehand/backoffice"
	"github.com/jmcleod/tablehand/domain"
	"github.com/jmcleod/tablehand/session"
)

var (
	tableFilter backoffice.TableFilter
	guests      int
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List, open and close tables",
}

var tablesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(c *client, _ session.Session) error {
			tables, err := c.office.Tables.List(cmd.Context(), tableFilter)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(tables))
			for _, t := range tables {
				rows = append(rows, []string{
					t.ID, t.Name, t.Area, strconv.Itoa(t.Seats), t.Status,
					guestCount(t), dash(t.SaleID),
				})
			}
			return table(cmd.OutOrStdout(), []string{"ID", "NAME", "AREA", "SEATS", "STATUS", "GUESTS", "SALE"}, rows)
		})
	},
}

var tablesOpenCmd = &cobra.Command{
	Use:   "open TABLE_ID",
	Short: "Seat guests at a table and start its sale",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(c *client, _ session.Session) error {
			t, err := c.office.Tables.Open(cmd.Context(), args[0], domain.OpenTableInput{Guests: guests})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is %s with %d guests (sale %s)\n", t.Name, t.Status, t.CurrentGuests, dash(t.SaleID))
			return nil
		})
	},
}

var tablesCloseCmd = &cobra.Command{
	Use:   "close TABLE_ID",
	Short: "Free a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(c *client, _ session.Session) error {
			t, err := c.office.Tables.Close(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is %s\n", t.Name, t.Status)
			return nil
		})
	},
}

func guestCount(t domain.Table) string {
	if t.CurrentGuests == 0 {
		return "-"
	}
	return strconv.Itoa(t.CurrentGuests)
}

func init() {
	rootCmd.AddCommand(tablesCmd)
	tablesCmd.AddCommand(tablesListCmd, tablesOpenCmd, tablesCloseCmd)
	tablesListCmd.Flags().StringVar(&tableFilter.Area, "area", "", "Only tables in this area")
	tablesListCmd.Flags().StringVar(&tableFilter.Status, "status", "", "free, occupied or reserved")
	tablesOpenCmd.Flags().IntVarP(&guests, "guests", "g", 1, "Number of guests")
}
