package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"solana-token-transfer/internal/wallet"
)

var holdingsCmd = &cobra.Command{
	Use:   "holdings",
	Short: "List the token accounts owned by a wallet",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}

		owner, _ := cmd.Flags().GetString("owner")
		if owner == "" {
			owner = e.cfg.Solana.Owner
		}
		if owner == "" && e.cfg.Solana.KeypairPath != "" {
			signer, err := wallet.LoadKeypairFile(e.cfg.Solana.KeypairPath)
			if err != nil {
				return err
			}
			owner = signer.PublicKey().String()
		}
		if owner != "" {
			if _, err := wallet.ParseIdentity(owner); err != nil {
				return err
			}
		}

		raws, err := e.discoverer().Discover(cmd.Context(), owner)
		if err != nil {
			return err
		}
		holdings, err := e.enricher().Enrich(cmd.Context(), raws)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tTOKEN\tSYMBOL\tBALANCE\tMINT\tACCOUNT")
		for i, h := range holdings {
			symbol := "-"
			if h.Symbol != nil && *h.Symbol != "" {
				symbol = *h.Symbol
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", i, h.DisplayName(), symbol, h.UIAmount().String(), h.Mint, h.Address)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(holdingsCmd)
	holdingsCmd.Flags().String("owner", "", "wallet address (defaults to the keypair's public key)")
}
