package calendar

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cal-sync/backend/internal/storage/models"
)

func stay(id string, apt int, start, end string) models.Booking {
	return models.Booking{
		ExternalID:  id,
		ApartmentID: apt,
		StartDate:   models.MustParseDate(start),
		EndDate:     models.MustParseDate(end),
	}
}

func TestFindOverlaps(t *testing.T) {
	bookings := []models.Booking{
		stay("a", 1, "2025-03-01", "2025-03-05"),
		stay("b", 1, "2025-03-04", "2025-03-08"),
		stay("c", 1, "2025-03-06", "2025-03-06"),
		stay("d", 1, "2025-03-09", "2025-03-10"),
		stay("e", 2, "2025-03-01", "2025-03-10"),
	}

	overlaps := FindOverlaps(bookings)
	require.Len(t, overlaps, 2)

	assert.Equal(t, "a", overlaps[0].First)
	assert.Equal(t, "b", overlaps[0].Second)
	assert.Equal(t, "2025-03-04", overlaps[0].Start.String())
	assert.Equal(t, "2025-03-05", overlaps[0].End.String())
	assert.Equal(t, 2, overlaps[0].Nights)

	assert.Equal(t, "b", overlaps[1].First)
	assert.Equal(t, "c", overlaps[1].Second)
	assert.Equal(t, 1, overlaps[1].Nights)
}

func TestFindOverlapsAdjacentStays(t *testing.T) {
	// Checkout day of one guest is the check-in day of the next.
	assert.Empty(t, FindOverlaps([]models.Booking{
		stay("a", 1, "2025-03-01", "2025-03-03"),
		stay("b", 1, "2025-03-04", "2025-03-06"),
	}))
	assert.Empty(t, FindOverlaps(nil))
}

func TestOverlapDetector(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, b := range []models.Booking{
		stay("x", 5, "2025-06-01", "2025-06-03"),
		stay("y", 5, "2025-06-03", "2025-06-04"),
	} {
		b := b
		require.NoError(t, env.bookings.Create(ctx, &b))
	}

	overlaps, err := NewOverlapDetector(env.bookings).Overlaps(ctx, 5)
	require.NoError(t, err)
	require.Len(t, overlaps, 1)
	assert.Equal(t, 5, overlaps[0].ApartmentID)
	assert.Equal(t, "2025-06-03", overlaps[0].Start.String())
}
