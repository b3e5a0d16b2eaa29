package dispatch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectorFor(t *testing.T) {
	tests := []struct {
		action Action
		want   Selector
	}{
		{Deposit, DepositSelector()},
		{Withdraw, WithdrawSelector()},
	}
	for _, tt := range tests {
		t.Run(tt.action.String(), func(t *testing.T) {
			got, err := SelectorFor(tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectorFor_UnknownAction(t *testing.T) {
	_, err := SelectorFor(Action(0))
	if !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}

	_, err = SelectorFor(Action(9))
	if !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
}

func TestSelectors_AreDistinct(t *testing.T) {
	seen := map[Selector]string{}
	for name, sel := range map[string]Selector{
		"deposit":   DepositSelector(),
		"withdraw":  WithdrawSelector(),
		"bridge_in": BridgeInSelector(),
	} {
		if other, ok := seen[sel]; ok {
			t.Fatalf("selector %s shared by %s and %s", sel, name, other)
		}
		seen[sel] = name
	}
}

func TestSelector_String(t *testing.T) {
	assert.Equal(t, "0x000000f0", DepositSelector().String())
	assert.Equal(t, "0x000000fa", WithdrawSelector().String())
	assert.Equal(t, "0x01010101", BridgeInSelector().String())
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction("Deposit")
	require.NoError(t, err)
	assert.Equal(t, Deposit, a)

	a, err = ParseAction(" withdraw ")
	require.NoError(t, err)
	assert.Equal(t, Withdraw, a)

	_, err = ParseAction("transfer")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestSelectors_ReturnCopies(t *testing.T) {
	sel := DepositSelector()
	sel[3] = 0xFF

	assert.Equal(t, "0x000000f0", DepositSelector().String())
	got, err := SelectorFor(Deposit)
	require.NoError(t, err)
	assert.Equal(t, DepositSelector(), got)
}
