package onchain

import (
	"context"
	"errors"
	"fmt"

	"github.com/fardream/go-bcs/bcs"
	"github.com/pattonkan/sui-go/sui"
	"github.com/pattonkan/sui-go/sui/suiptb"
	"github.com/pattonkan/sui-go/suiclient"
)

// DemoKind selects one of the sample transactions the demo signs.
type DemoKind string

const (
	DemoSimple DemoKind = "simple"
	DemoMulti  DemoKind = "multi"
	DemoLegacy DemoKind = "legacy"
)

var ErrNotEnoughCoins = errors.New("need at least two SUI coins: one for gas and one to split")

func ParseDemoKind(s string) (DemoKind, error) {
	switch k := DemoKind(s); k {
	case DemoSimple, DemoMulti, DemoLegacy:
		return k, nil
	case "":
		return DemoSimple, nil
	}
	return "", fmt.Errorf("unknown transaction kind %q", s)
}

// splitAmounts are the MIST amounts each demo splits off its source coin.
func (k DemoKind) splitAmounts() []uint64 {
	switch k {
	case DemoMulti:
		return []uint64{1000, 2000, 3000}
	case DemoLegacy:
		return []uint64{100}
	default:
		return []uint64{1000}
	}
}

// BuildDemoTransaction fetches the sender's coins and returns BCS
// TransactionData bytes ready to sign.
func (p *Pool) BuildDemoTransaction(ctx context.Context, network string, kind DemoKind, sender string) ([]byte, error) {
	c, err := p.Client(network)
	if err != nil {
		return nil, err
	}
	addr, err := sui.AddressFromHex(sender)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidAddress, sender, err)
	}

	coinPage, err := c.client.GetCoins(ctx, &suiclient.GetCoinsRequest{Owner: addr})
	if err != nil {
		return nil, fmt.Errorf("failed to get coin object: %w", err)
	}
	refs := suiclient.Coins(coinPage.Data).CoinRefs()

	txBytes, err := buildDemo(kind, addr, refs)
	if err != nil {
		return nil, err
	}
	p.logger.Debugw("Built demo transaction", "network", network, "kind", kind, "sender", sender, "size", len(txBytes))
	return txBytes, nil
}

// buildDemo pays gas with coins[0] and splits from coins[1]. Every split
// lands back with the sender.
func buildDemo(kind DemoKind, sender *sui.Address, coins []*sui.ObjectRef) ([]byte, error) {
	if len(coins) < 2 {
		return nil, ErrNotEnoughCoins
	}
	amounts := kind.splitAmounts()

	ptb := suiptb.NewTransactionDataTransactionBuilder()
	source := ptb.MustObj(suiptb.ObjectArg{ImmOrOwnedObject: coins[1]})

	pureAmounts := make([]suiptb.Argument, 0, len(amounts))
	for _, a := range amounts {
		pureAmounts = append(pureAmounts, ptb.MustPure(a))
	}
	split := ptb.Command(suiptb.Command{
		SplitCoins: &suiptb.ProgrammableSplitCoins{
			Coin:    source,
			Amounts: pureAmounts,
		},
	})

	transfer := nestedResult(split, 0)
	if len(amounts) > 1 {
		sources := make([]suiptb.Argument, 0, len(amounts)-1)
		for i := 1; i < len(amounts); i++ {
			sources = append(sources, nestedResult(split, uint16(i)))
		}
		ptb.Command(suiptb.Command{
			MergeCoins: &suiptb.ProgrammableMergeCoins{
				Destination: transfer,
				Sources:     sources,
			},
		})
	}

	ptb.Command(suiptb.Command{
		TransferObjects: &suiptb.ProgrammableTransferObjects{
			Objects: []suiptb.Argument{transfer},
			Address: ptb.MustPure(sender),
		},
	})

	tx := suiptb.NewTransactionData(
		sender,
		ptb.Finish(),
		[]*sui.ObjectRef{coins[0]},
		suiclient.DefaultGasBudget,
		suiclient.DefaultGasPrice,
	)
	txBytes, err := bcs.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction: %w", err)
	}
	return txBytes, nil
}

func nestedResult(cmd suiptb.Argument, index uint16) suiptb.Argument {
	return suiptb.Argument{NestedResult: &suiptb.NestedResult{Cmd: *cmd.Result, Result: index}}
}
