package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowdduel/duelbet/internal/domain"
)

func testFees() domain.FeeConfig {
	return domain.FeeConfig{
		SpreadBps:        200,
		CreatorShareBps:  5000,
		ArbiterShareBps:  2000,
		ProtocolShareBps: 3000,
	}
}

func TestSplitFee(t *testing.T) {
	tests := []struct {
		name   string
		amount uint64
		want   FeeSplit
	}{
		{
			name:   "round contribution",
			amount: 100_000,
			want: FeeSplit{
				Net:         98_000,
				FeeTotal:    2_000,
				FeeCreators: 1_000,
				FeeArbiter:  400,
				FeeProtocol: 600,
			},
		},
		{
			name:   "half contribution",
			amount: 50_000,
			want: FeeSplit{
				Net:         49_000,
				FeeTotal:    1_000,
				FeeCreators: 500,
				FeeArbiter:  200,
				FeeProtocol: 300,
			},
		},
		{
			name:   "amount below one fee unit",
			amount: 49,
			want: FeeSplit{
				// floor(49*200/10000) = 0: the whole amount passes through.
				Net:      49,
				FeeTotal: 0,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SplitFee(tt.amount, testFees())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.amount, got.Net+got.FeeTotal, "gross must be conserved")
		})
	}
}

func TestSplitFeeZeroAmount(t *testing.T) {
	_, err := SplitFee(0, testFees())
	assert.ErrorIs(t, err, domain.ErrAmountTooSmall)
}

func TestSplitFeeDustStranded(t *testing.T) {
	// feeTotal = floor(101*200/10000) = 2; each share floors to 1/0/0,
	// leaving 1 unit of dust that is never credited anywhere.
	split, err := SplitFee(101, testFees())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), split.FeeTotal)
	assert.Equal(t, uint64(1), split.FeeCreators)
	assert.Equal(t, uint64(0), split.FeeArbiter)
	assert.Equal(t, uint64(0), split.FeeProtocol)
	assert.Equal(t, uint64(1), split.Dust())
}

func TestSplitFeeOverflow(t *testing.T) {
	_, err := SplitFee(math.MaxUint64, testFees())
	assert.ErrorIs(t, err, domain.ErrArithmeticOverflow)
}

func TestMulDiv(t *testing.T) {
	// Large operands whose plain product exceeds 64 bits.
	got, err := mulDiv(math.MaxUint64/2, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, math.MaxUint64-uint64(1), got)

	_, err = mulDiv(math.MaxUint64, math.MaxUint64, 1)
	assert.ErrorIs(t, err, domain.ErrArithmeticOverflow)

	_, err = mulDiv(1, 1, 0)
	assert.ErrorIs(t, err, domain.ErrArithmeticOverflow)
}

func TestAddChecked(t *testing.T) {
	got, err := addChecked(math.MaxUint64-1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), got)

	_, err = addChecked(math.MaxUint64, 1)
	assert.ErrorIs(t, err, domain.ErrArithmeticOverflow)
}
