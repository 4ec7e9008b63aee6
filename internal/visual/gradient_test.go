package visual

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGradientEndpoints(t *testing.T) {
	g := DefaultGradient(false)

	assert.Equal(t, LowColor, g.At(0).Hex())
	assert.Equal(t, MidColor, g.At(0.5).Hex())
	assert.Equal(t, HighColor, g.At(1).Hex())
	assert.Equal(t, LowColor, g.At(-3).Hex())
	assert.Equal(t, HighColor, g.At(7).Hex())
}

func TestGradientMovesTowardRed(t *testing.T) {
	g := DefaultGradient(false)

	low, high := g.At(0.1), g.At(0.9)
	assert.Greater(t, low.G, low.R)
	assert.Greater(t, high.R, high.G)
}

func TestSteppedGradient(t *testing.T) {
	g := DefaultGradient(true)

	tests := []struct {
		v    float64
		want string
	}{
		{0, LowColor},
		{0.29, LowColor},
		{0.3, MidColor},
		{0.59, MidColor},
		{0.6, HighColor},
		{1, HighColor},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, g.At(tt.v).Hex(), "v=%v", tt.v)
	}
}

func TestNewGradientValidates(t *testing.T) {
	_, err := NewGradient(false, "#ffffff")
	assert.Error(t, err)

	_, err = NewGradient(false, "#ffffff", "nope")
	assert.Error(t, err)
}

func TestColorText(t *testing.T) {
	var c Color
	require.NoError(t, c.UnmarshalText([]byte("#3498db")))
	assert.Equal(t, Color{R: 0x34, G: 0x98, B: 0xdb}, c)

	text, err := c.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "#3498db", string(text))
}
