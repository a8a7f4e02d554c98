package transfer

import (
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"

	"solana-token-transfer/internal/solana"
)

// Plan is the ordered instruction list for one transfer. All instructions
// go into a single transaction, so the destination account is only created
// if the transfer succeeds too.
type Plan struct {
	Owner              solanago.PublicKey
	Mint               solanago.PublicKey
	SourceAccount      solanago.PublicKey
	Destination        solanago.PublicKey
	DestinationAccount solanago.PublicKey
	CreateDestination  bool
	Amount             uint64
	Instructions       []solanago.Instruction
}

// AssociatedAccounts derives the source and destination associated token
// accounts for mint.
func AssociatedAccounts(owner, destination, mint solanago.PublicKey) (source, dest solanago.PublicKey, err error) {
	src, err := solana.FindAssociatedTokenAddress(owner.String(), mint.String())
	if err != nil {
		return source, dest, fmt.Errorf("derive source account: %w", err)
	}
	dst, err := solana.FindAssociatedTokenAddress(destination.String(), mint.String())
	if err != nil {
		return source, dest, fmt.Errorf("derive destination account: %w", err)
	}
	return solanago.MustPublicKeyFromBase58(src), solanago.MustPublicKeyFromBase58(dst), nil
}

// BuildPlan lays out the instructions: a create-account instruction paid by
// owner when the destination account does not exist yet, then the transfer.
func BuildPlan(owner, destination, mint solanago.PublicKey, amount uint64, destinationExists bool) (*Plan, error) {
	source, dest, err := AssociatedAccounts(owner, destination, mint)
	if err != nil {
		return nil, err
	}

	p := &Plan{
		Owner:              owner,
		Mint:               mint,
		SourceAccount:      source,
		Destination:        destination,
		DestinationAccount: dest,
		CreateDestination:  !destinationExists,
		Amount:             amount,
	}

	if p.CreateDestination {
		p.Instructions = append(p.Instructions, createAssociatedAccountInstruction(owner, dest, destination, mint))
	}

	ix, err := token.NewTransferInstruction(
		amount,
		source,
		dest,
		owner,
		[]solanago.PublicKey{},
	).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("build transfer instruction: %w", err)
	}
	p.Instructions = append(p.Instructions, ix)

	return p, nil
}

// createAssociatedAccountInstruction builds the associated-token-account
// program's Create instruction.
func createAssociatedAccountInstruction(payer, account, wallet, mint solanago.PublicKey) solanago.Instruction {
	return solanago.NewInstruction(
		solanago.SPLAssociatedTokenAccountProgramID,
		[]*solanago.AccountMeta{
			{PublicKey: payer, IsSigner: true, IsWritable: true},
			{PublicKey: account, IsSigner: false, IsWritable: true},
			{PublicKey: wallet, IsSigner: false, IsWritable: false},
			{PublicKey: mint, IsSigner: false, IsWritable: false},
			{PublicKey: solanago.SystemProgramID, IsSigner: false, IsWritable: false},
			{PublicKey: solanago.TokenProgramID, IsSigner: false, IsWritable: false},
		},
		[]byte{0}, // Create
	)
}
