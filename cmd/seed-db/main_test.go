package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/candle-checkout/internal/domain/discount"
	"github.com/xenking/candle-checkout/internal/domain/pricing"
)

func TestReadSeed_Storefront(t *testing.T) {
	seed, err := readSeed(filepath.Join("..", "..", "db", "seed", "storefront.json"))
	require.NoError(t, err)

	codes, err := seed.discountCodes()
	require.NoError(t, err)
	require.NotEmpty(t, codes)
	for _, c := range codes {
		assert.Equal(t, discount.Normalize(c.Code), c.Code)
	}

	options := pricing.NewShippingOptions(seed.shippingOptions())
	standard, ok := options[pricing.ShippingStandard]
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(300).Equal(standard.BaseCost))
	require.True(t, standard.FreeThreshold.Valid)
	assert.True(t, decimal.NewFromInt(2500).Equal(standard.FreeThreshold.Decimal))
	assert.False(t, options[pricing.ShippingExpress].FreeThreshold.Valid)

	require.Len(t, seed.Counters, 1)
	assert.Equal(t, "orders", seed.Counters[0].Name)
	assert.Equal(t, int64(1000), seed.Counters[0].Start)
}

func TestDiscountCodes_RejectsUnknownKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"discounts":[{"code":"x","kind":"bogo","value":"1"}]}`), 0o600))

	seed, err := readSeed(path)
	require.NoError(t, err)
	_, err = seed.discountCodes()
	require.ErrorIs(t, err, discount.ErrUnknownKind)
}
