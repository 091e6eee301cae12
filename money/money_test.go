package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFloatRounds(t *testing.T) {
	assert.Equal(t, Amount(2450), FromFloat(24.50))
	assert.Equal(t, Amount(30), FromFloat(0.1+0.2))
	assert.Equal(t, Amount(1999), FromFloat(19.99))
}

func TestPercentRoundsHalfUp(t *testing.T) {
	// 8.1% of 10.00 = 0.81
	assert.Equal(t, Amount(81), Amount(1000).Percent(810))
	// 8.1% of 0.50 = 0.0405 -> 0.04
	assert.Equal(t, Amount(4), Amount(50).Percent(810))
	// 8.1% of 12.35 = 1.00035 -> 1.00
	assert.Equal(t, Amount(100), Amount(1235).Percent(810))
	assert.Equal(t, Amount(0), Amount(-500).Percent(810))
}

func TestJSONRoundTrip(t *testing.T) {
	b, err := json.Marshal(struct {
		Total Amount `json:"total"`
	}{Total: 2450})
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":24.50}`, string(b))

	var in struct {
		Price Amount `json:"price"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"price":12.3}`), &in))
	assert.Equal(t, Amount(1230), in.Price)
}

func TestStringNegative(t *testing.T) {
	assert.Equal(t, "-0.05", Amount(-5).String())
	assert.Equal(t, "0.00", Amount(0).String())
}
