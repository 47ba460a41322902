package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/yonghanchen/predictbot/internal/domain"
)

// balanceOfSelector is the 4-byte selector of ERC-20 balanceOf(address).
var balanceOfSelector = []byte{0x70, 0xa0, 0x82, 0x31}

// usdcDecimals converts raw USDC units to whole dollars.
var usdcDecimals = big.NewFloat(1e6)

// ChainReader is the subset of ethclient.Client the monitor needs.
type ChainReader interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// DepositNotifier receives deposit events. *notify.Notifier satisfies it.
type DepositNotifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// DepositMonitor polls the custodial wallet's USDC balance on-chain and
// records any increase as a deposit. Balance decreases (withdrawals, fills)
// only move the recorded baseline.
type DepositMonitor struct {
	chain    ChainReader
	deposits domain.DepositStore
	notifier DepositNotifier

	wallet   common.Address
	token    common.Address
	interval time.Duration
	logger   *slog.Logger

	now func() time.Time
}

// NewDepositMonitor creates a DepositMonitor. notifier may be nil.
func NewDepositMonitor(
	chain ChainReader,
	deposits domain.DepositStore,
	notifier DepositNotifier,
	wallet, token string,
	interval time.Duration,
	logger *slog.Logger,
) *DepositMonitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &DepositMonitor{
		chain:    chain,
		deposits: deposits,
		notifier: notifier,
		wallet:   common.HexToAddress(wallet),
		token:    common.HexToAddress(token),
		interval: interval,
		logger:   logger.With(slog.String("component", "deposit_monitor")),
		now:      time.Now,
	}
}

// Run polls until the context is cancelled. Poll errors are logged and the
// loop keeps going.
func (m *DepositMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.InfoContext(ctx, "deposit monitor started",
		slog.String("wallet", m.wallet.Hex()),
		slog.Duration("interval", m.interval),
	)

	for {
		if err := m.Poll(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			m.logger.WarnContext(ctx, "deposit poll failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll reads the current balance, compares it to the recorded baseline, and
// records the delta as a deposit when the balance grew.
func (m *DepositMonitor) Poll(ctx context.Context) error {
	balance, err := m.balanceOf(ctx)
	if err != nil {
		return err
	}
	now := m.now()

	last, err := m.deposits.LastBalance(ctx, m.wallet.Hex())
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("deposit_monitor: last balance: %w", err)
		}
		// First observation just sets the baseline.
		if err := m.deposits.SetBalance(ctx, m.wallet.Hex(), balance, now); err != nil {
			return fmt.Errorf("deposit_monitor: set baseline: %w", err)
		}
		m.logger.InfoContext(ctx, "baseline balance recorded", slog.Float64("balance", balance))
		return nil
	}

	if balance > last {
		dep := domain.Deposit{
			Wallet:     m.wallet.Hex(),
			Token:      m.token.Hex(),
			Amount:     balance - last,
			ObservedAt: now,
		}
		if err := m.deposits.Insert(ctx, dep); err != nil {
			return fmt.Errorf("deposit_monitor: record deposit: %w", err)
		}
		m.logger.InfoContext(ctx, "deposit observed",
			slog.Float64("amount", dep.Amount),
			slog.Float64("balance", balance),
		)
		if m.notifier != nil {
			msg := fmt.Sprintf("%.2f USDC received, balance %.2f", dep.Amount, balance)
			if err := m.notifier.Notify(ctx, "deposit", "Deposit", msg); err != nil {
				m.logger.WarnContext(ctx, "deposit notification failed", slog.String("error", err.Error()))
			}
		}
	}

	if balance != last {
		if err := m.deposits.SetBalance(ctx, m.wallet.Hex(), balance, now); err != nil {
			return fmt.Errorf("deposit_monitor: update balance: %w", err)
		}
	}
	return nil
}

// balanceOf calls ERC-20 balanceOf(wallet) on the token contract at the
// latest block and scales the result by the token decimals.
func (m *DepositMonitor) balanceOf(ctx context.Context) (float64, error) {
	data := make([]byte, 0, 36)
	data = append(data, balanceOfSelector...)
	data = append(data, common.LeftPadBytes(m.wallet.Bytes(), 32)...)

	out, err := m.chain.CallContract(ctx, ethereum.CallMsg{
		To:   &m.token,
		Data: data,
	}, nil)
	if err != nil {
		return 0, fmt.Errorf("deposit_monitor: balanceOf call: %w", err)
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("deposit_monitor: empty balanceOf result")
	}

	raw := new(big.Int).SetBytes(out)
	scaled, _ := new(big.Float).Quo(new(big.Float).SetInt(raw), usdcDecimals).Float64()
	return scaled, nil
}
