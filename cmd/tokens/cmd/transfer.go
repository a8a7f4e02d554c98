package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"solana-token-transfer/internal/domain"
	"solana-token-transfer/internal/notify"
	"solana-token-transfer/internal/solana"
	"solana-token-transfer/internal/transfer"
	"solana-token-transfer/internal/wallet"
)

var errNoKeypair = errors.New("a keypair is required to send tokens (--keypair)")

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Send tokens to another wallet",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		if e.cfg.Solana.KeypairPath == "" {
			return errNoKeypair
		}
		signer, err := wallet.LoadKeypairFile(e.cfg.Solana.KeypairPath)
		if err != nil {
			return err
		}

		mint, _ := cmd.Flags().GetString("mint")
		to, _ := cmd.Flags().GetString("to")
		amountStr, _ := cmd.Flags().GetString("amount")

		amount, err := transfer.ParseAmount(amountStr)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		raws, err := e.discoverer().Discover(ctx, signer.PublicKey().String())
		if err != nil {
			return err
		}
		holdings, err := e.enricher().Enrich(ctx, raws)
		if err != nil {
			return err
		}
		source := pickSource(holdings, signer.PublicKey().String(), mint)
		if source == nil {
			return fmt.Errorf("%w: wallet holds no %s", transfer.ErrNoSelection, mint)
		}

		svc := transfer.NewService(e.rpc,
			transfer.WithSigner(signer),
			transfer.WithConfirmer(solana.NewPollConfirmer(e.rpc, e.cfg.Solana.ConfirmPollInterval, e.cfg.Solana.ConfirmTimeout)),
			transfer.WithPublisher(notify.NewLogPublisher(e.log)),
			transfer.WithLogger(e.log),
		)
		res, err := svc.Transfer(ctx, transfer.Request{
			Source:      source,
			Destination: to,
			Amount:      amount,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Transaction successful!\nsignature: %s\n", res.Signature)
		if res.CreatedDestination {
			fmt.Fprintf(cmd.OutOrStdout(), "created token account %s\n", res.DestinationAccount)
		}
		return nil
	},
}

// pickSource returns owner's associated token account for mint when the
// wallet holds it, otherwise the decoded account with the largest balance,
// or nil.
func pickSource(holdings []domain.Holding, owner, mint string) *domain.Holding {
	ata, _ := solana.FindAssociatedTokenAddress(owner, mint)
	var best *domain.Holding
	for i := range holdings {
		h := &holdings[i]
		if h.DecodeErr != "" || h.Mint != mint {
			continue
		}
		if ata != "" && h.Address == ata {
			return h
		}
		if best == nil || h.Amount > best.Amount {
			best = h
		}
	}
	return best
}

func init() {
	rootCmd.AddCommand(transferCmd)
	transferCmd.Flags().String("mint", "", "token mint address")
	transferCmd.Flags().String("to", "", "recipient wallet address")
	transferCmd.Flags().String("amount", "", "amount in tokens, e.g. 1.5")
	_ = transferCmd.MarkFlagRequired("mint")
	_ = transferCmd.MarkFlagRequired("to")
	_ = transferCmd.MarkFlagRequired("amount")
}
