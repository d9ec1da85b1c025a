package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestLatest_ReturnsMostRecentForID(t *testing.T) {
	recs := []Record{
		{ID: "B0AAAAAAAA", NewPrice: decimal.NewFromInt(50)},
		{ID: "B0BBBBBBBB", NewPrice: decimal.NewFromInt(10)},
		{ID: "B0AAAAAAAA", NewPrice: decimal.NewFromInt(44)},
	}
	r, ok := Latest(recs, "B0AAAAAAAA")
	require.True(t, ok)
	require.True(t, r.NewPrice.Equal(decimal.NewFromInt(44)))

	_, ok = Latest(recs, "B0CCCCCCCC")
	require.False(t, ok)
}

func TestPublishedOn(t *testing.T) {
	today := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)

	recs := []Record{
		{ID: "B0AAAAAAAA", Kind: KindMonitorDrop, Timestamp: today},
		{ID: "B0BBBBBBBB", Kind: KindManualPost, Timestamp: yesterday},
		{ID: "B0CCCCCCCC", Kind: KindLegacy, Timestamp: today.Add(3 * time.Hour)},
		{ID: UnknownID, Kind: KindManualPost, Timestamp: today},
	}

	require.False(t, PublishedOn(recs, "B0AAAAAAAA", today), "monitor rows are not publications")
	require.False(t, PublishedOn(recs, "B0BBBBBBBB", today))
	require.True(t, PublishedOn(recs, "B0BBBBBBBB", yesterday))
	require.True(t, PublishedOn(recs, "B0CCCCCCCC", today))
	require.False(t, PublishedOn(recs, UnknownID, today))
}

func TestDiscounted(t *testing.T) {
	require.True(t, Record{OldPrice: decimal.NewFromInt(10), NewPrice: decimal.NewFromInt(9)}.Discounted())
	require.False(t, Record{OldPrice: decimal.NewFromInt(10), NewPrice: decimal.NewFromInt(10)}.Discounted())
	require.False(t, Record{OldPrice: decimal.NewFromInt(10), NewPrice: decimal.Zero}.Discounted())
}
