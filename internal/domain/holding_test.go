package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHolding_UIAmount(t *testing.T) {
	h := &Holding{Amount: 1_500_000_000}
	assert.Equal(t, "1.5", h.UIAmount().String())

	h = &Holding{Amount: 1}
	assert.Equal(t, "0.000000001", h.UIAmount().String())

	h = &Holding{Amount: math.MaxUint64}
	assert.Equal(t, "18446744073.709551615", h.UIAmount().String())
}

func TestHolding_DisplayName(t *testing.T) {
	h := &Holding{Mint: "mint1"}
	assert.Equal(t, "mint1", h.DisplayName())
	assert.False(t, h.HasMetadata())

	name := "Token"
	h.Name = &name
	assert.Equal(t, "Token", h.DisplayName())
	assert.True(t, h.HasMetadata())
}
