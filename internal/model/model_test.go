package model

import (
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGasUsedNet(t *testing.T) {
	tests := []struct {
		name string
		gas  GasUsed
		want int64
	}{
		{"cost minus rebate", GasUsed{big.NewInt(750), big.NewInt(2000), big.NewInt(1000)}, 1750},
		{"rebate exceeds cost", GasUsed{big.NewInt(100), big.NewInt(50), big.NewInt(200)}, -50},
		{"missing fields count as zero", GasUsed{ComputationCost: big.NewInt(10)}, 10},
		{"empty", GasUsed{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.gas.Net().Int64())
		})
	}
}

func TestCommands(t *testing.T) {
	assert.Equal(t, 1, TransactionRecord{}.Commands())
	assert.Equal(t, 3, TransactionRecord{MoveCalls: make([]MoveCall, 3)}.Commands())
}

func TestCategoryValid(t *testing.T) {
	for _, c := range Categories {
		assert.True(t, c.Valid(), c)
	}
	assert.False(t, Category("defi").Valid())
}

func TestYearWindow(t *testing.T) {
	w := YearWindow(2025)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2025, 12, 31, 23, 59, 59, int(999*time.Millisecond), time.UTC), w.End)

	assert.True(t, w.Contains(w.Start.UnixMilli()))
	assert.True(t, w.Contains(w.End.UnixMilli()))
	assert.False(t, w.Contains(w.Start.UnixMilli()-1))
	assert.False(t, w.Contains(w.End.UnixMilli()+1))
}

func TestErrorCodes(t *testing.T) {
	cause := errors.New("socket closed")
	err := NewError(CodeGenerationFailed, cause, "failed for %s", "0xabc")

	assert.Equal(t, "GENERATION_FAILED: failed for 0xabc: socket closed", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.NotErrorIs(t, err, ErrNoTransactions)

	wrapped := fmt.Errorf("handler: %w", NewError(CodeNoTransactions, nil, "none"))
	assert.Equal(t, CodeNoTransactions, CodeOf(wrapped))
	assert.ErrorIs(t, wrapped, ErrNoTransactions)
	assert.Equal(t, CodeGenerationFailed, CodeOf(errors.New("plain")))
}

func TestPersonaCopiesComplete(t *testing.T) {
	for _, p := range []Persona{
		PersonaMoveMaximalist, PersonaDiamondHand, PersonaYieldArchitect,
		PersonaJPEGMogul, PersonaEarlyBird, PersonaBalancedBuilder,
	} {
		c, ok := PersonaCopies[p]
		assert.True(t, ok, p)
		assert.NotEmpty(t, c.Title, p)
	}
}
