package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmcleod/tablehand/domain"
	"github.com/jmcleod/tablehand/session"
)

var cashboxAmount float64

var cashboxCmd = &cobra.Command{
	Use:   "cashbox",
	Short: "Show, open and close the cashbox",
}

var cashboxStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the open cashbox and its transactions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(c *client, _ session.Session) error {
			out := cmd.OutOrStdout()
			cb, err := c.office.Cashbox.Current(cmd.Context())
			if err != nil {
				return err
			}
			if cb == nil {
				fmt.Fprintln(out, "No cashbox open")
				return nil
			}
			fmt.Fprintf(out, "Cashbox %s opened by %s at %s\n", cb.ID, cb.OpenedBy, cb.OpenedAt.Local().Format("2006-01-02 15:04"))
			fmt.Fprintf(out, "Opening amount: %s\nBalance:        %s\n\n", money(cb.OpeningAmount), money(cb.Balance))

			txs, err := c.office.Transactions.List(cmd.Context(), cb.ID)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(txs))
			for _, tx := range txs {
				rows = append(rows, []string{tx.CreatedAt.Local().Format("15:04"), tx.Type, money(tx.Amount), tx.Description})
			}
			return table(out, []string{"TIME", "TYPE", "AMOUNT", "DESCRIPTION"}, rows)
		})
	},
}

var cashboxOpenCmd = &cobra.Command{
	Use:   "open",
	Short: "Open a cashbox",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(c *client, _ session.Session) error {
			cb, err := c.office.Cashbox.Open(cmd.Context(), domain.OpenCashboxInput{OpeningAmount: cashboxAmount})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cashbox %s open with %s\n", cb.ID, money(cb.OpeningAmount))
			return nil
		})
	},
}

var cashboxCloseCmd = &cobra.Command{
	Use:   "close",
	Short: "Close the open cashbox",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(c *client, sess session.Session) error {
			if sess.Cashbox == nil {
				return fmt.Errorf("no cashbox open")
			}
			cb, err := c.office.Cashbox.Close(cmd.Context(), sess.Cashbox.ID, domain.CloseCashboxInput{ClosingAmount: cashboxAmount})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cashbox %s closed; balance %s\n", cb.ID, money(cb.Balance))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(cashboxCmd)
	cashboxCmd.AddCommand(cashboxStatusCmd, cashboxOpenCmd, cashboxCloseCmd)
	cashboxOpenCmd.Flags().Float64Var(&cashboxAmount, "amount", 0, "Opening amount")
	cashboxCloseCmd.Flags().Float64Var(&cashboxAmount, "amount", 0, "Counted closing amount")
}
