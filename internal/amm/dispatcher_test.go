package amm

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
)

func TestOnTransferUnsupportedToken(t *testing.T) {
	pool := newTestPool(t, newFakeLedger())

	if _, err := pool.OnTransfer(context.Background(), tokenX, ownerAddr, u("100"), ""); err != ErrUnsupportedToken {
		t.Fatalf("expected ErrUnsupportedToken, got %v", err)
	}

	balance, _ := pool.Balance(tokenA)
	if !balance.IsZero() {
		t.Fatalf("rejected transfer must not mutate balances")
	}
}

func TestOnTransferZeroAmount(t *testing.T) {
	pool := newTestPool(t, newFakeLedger())

	if _, err := pool.OnTransfer(context.Background(), tokenA, ownerAddr, new(uint256.Int), ""); err != ErrZeroAmount {
		t.Fatalf("expected ErrZeroAmount, got %v", err)
	}
	if _, err := pool.OnTransfer(context.Background(), tokenA, ownerAddr, nil, ""); err != ErrZeroAmount {
		t.Fatalf("expected ErrZeroAmount for nil amount, got %v", err)
	}
}

func TestOwnerDepositRoundTrip(t *testing.T) {
	pool := newTestPool(t, newFakeLedger())

	depositAsOwner(t, pool, tokenA, "1000000000")

	balanceA, _ := pool.Balance(tokenA)
	if !balanceA.Eq(u("1000000000")) {
		t.Fatalf("deposit did not land: %s", balanceA.Dec())
	}
	balanceB, _ := pool.Balance(tokenB)
	if !balanceB.IsZero() {
		t.Fatalf("deposit must not touch the other slot: %s", balanceB.Dec())
	}
}

func TestDepositBalanceCap(t *testing.T) {
	pool := newTestPool(t, newFakeLedger())
	max128 := u("340282366920938463463374607431768211455")

	depositAsOwner(t, pool, tokenA, max128.Dec())

	if _, err := pool.OnTransfer(context.Background(), tokenA, ownerAddr, u("1"), ""); err != ErrAmountOverflow {
		t.Fatalf("expected ErrAmountOverflow, got %v", err)
	}
	balance, _ := pool.Balance(tokenA)
	if !balance.Eq(max128) {
		t.Fatalf("failed deposit must not mutate the balance")
	}
}

func TestSwapOnEmptyPool(t *testing.T) {
	pool := newTestPool(t, newFakeLedger())

	if _, err := pool.OnTransfer(context.Background(), tokenA, aliceAddr, u("10"), ""); err != ErrZeroOutput {
		t.Fatalf("expected ErrZeroOutput, got %v", err)
	}
}
