// Package rewards implements the welcome-mint hook against the
// platform's reward token contract.
package rewards

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/questlabs/walletgate/ports"
)

const mintABI = `[{"name":"mintTo","type":"function","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]}]`

const tokenDecimals = 18

// EthMinter sends a mintTo transaction to the reward contract. It is
// invoked off the login critical path; callers own the retry budget.
type EthMinter struct {
	client   *ethclient.Client
	contract common.Address
	key      *ecdsa.PrivateKey
	chainID  *big.Int
	amount   decimal.Decimal
	abi      abi.ABI
	log      *zap.Logger
}

func NewEthMinter(client *ethclient.Client, contract common.Address, key *ecdsa.PrivateKey, chainID *big.Int, amount decimal.Decimal, log *zap.Logger) (*EthMinter, error) {
	parsed, err := abi.JSON(strings.NewReader(mintABI))
	if err != nil {
		return nil, fmt.Errorf("parse mint abi: %w", err)
	}
	return &EthMinter{
		client:   client,
		contract: contract,
		key:      key,
		chainID:  chainID,
		amount:   amount,
		abi:      parsed,
		log:      log.Named("rewards"),
	}, nil
}

func (m *EthMinter) MintForNewUser(ctx context.Context, address string) (string, error) {
	data, err := m.abi.Pack("mintTo", common.HexToAddress(address), m.weiAmount())
	if err != nil {
		return "", fmt.Errorf("pack mint call: %w", err)
	}

	from := crypto.PubkeyToAddress(m.key.PublicKey)
	nonce, err := m.client.PendingNonceAt(ctx, from)
	if err != nil {
		return "", fmt.Errorf("fetch nonce: %w", err)
	}
	gasPrice, err := m.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("suggest gas price: %w", err)
	}
	gasLimit, err := m.client.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &m.contract,
		Data: data,
	})
	if err != nil {
		return "", fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &m.contract,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(m.chainID), m.key)
	if err != nil {
		return "", fmt.Errorf("sign mint tx: %w", err)
	}
	if err := m.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send mint tx: %w", err)
	}

	hash := signed.Hash().Hex()
	m.log.Info("welcome mint submitted",
		zap.String("address", address),
		zap.String("tx_hash", hash),
		zap.String("amount", m.amount.String()))
	return hash, nil
}

func (m *EthMinter) weiAmount() *big.Int {
	return m.amount.Shift(tokenDecimals).BigInt()
}

var _ ports.RewardMinter = (*EthMinter)(nil)
