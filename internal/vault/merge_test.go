package vault

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"historyvault/internal/domain/models"
)

func candleAt(open time.Time, volume int64) models.Candle {
	return models.Candle{
		OpenTime:  open,
		CloseTime: open.Add(time.Hour - models.Tick),
		Open:      decimal.New(100, 0),
		High:      decimal.New(110, 0),
		Low:       decimal.New(90, 0),
		Close:     decimal.New(105, 0),
		Volume:    decimal.New(volume, 0),
	}
}

func TestMergeCandlesIncomingWins(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	existing := []models.Candle{
		candleAt(base, 100),
		candleAt(base.Add(time.Hour), 100),
		candleAt(base.Add(2*time.Hour), 100),
	}
	incoming := []models.Candle{
		candleAt(base.Add(time.Hour), 999),
	}

	merged := mergeCandles(existing, incoming)
	require.Len(t, merged, 3)
	assert.True(t, merged[0].Volume.Equal(decimal.New(100, 0)))
	assert.True(t, merged[1].Volume.Equal(decimal.New(999, 0)))
	assert.True(t, merged[2].Volume.Equal(decimal.New(100, 0)))
}

func TestMergeCandlesInterleaves(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	existing := []models.Candle{
		candleAt(base, 1),
		candleAt(base.Add(2*time.Hour), 3),
	}
	incoming := []models.Candle{
		candleAt(base.Add(time.Hour), 2),
		candleAt(base.Add(3*time.Hour), 4),
	}

	merged := mergeCandles(existing, incoming)
	require.Len(t, merged, 4)
	for i, want := range []int64{1, 2, 3, 4} {
		assert.True(t, merged[i].Volume.Equal(decimal.New(want, 0)), "position %d", i)
	}
}

func TestMergeCandlesEmptySides(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	one := []models.Candle{candleAt(base, 1)}

	assert.Len(t, mergeCandles(nil, one), 1)
	assert.Len(t, mergeCandles(one, nil), 1)
	assert.Empty(t, mergeCandles(nil, nil))
}

func TestGroupByMonth(t *testing.T) {
	juneLate := time.Date(2025, 6, 30, 23, 0, 0, 0, time.UTC)
	julyEarly := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	candles := []models.Candle{
		candleAt(julyEarly, 2),
		candleAt(juneLate, 1),
	}

	groups := groupByMonth(candles)
	require.Len(t, groups, 2)

	keys := sortedMonthKeys(groups)
	assert.Equal(t, monthKey{2025, time.June}, keys[0])
	assert.Equal(t, monthKey{2025, time.July}, keys[1])
	assert.True(t, groups[keys[0]][0].Volume.Equal(decimal.New(1, 0)))
}
