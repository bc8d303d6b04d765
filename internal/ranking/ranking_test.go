package ranking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelrate/reelrate/internal/domain"
)

func ratingAt(id int64, value int, ratedAt time.Time) domain.Rating {
	return domain.Rating{
		ID:      id,
		UserID:  "user-1",
		TitleID: "title-1",
		Value:   value,
		RatedAt: ratedAt,
	}
}

func TestRecencyRanks(t *testing.T) {
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	t.Run("newest first", func(t *testing.T) {
		ratings := []domain.Rating{
			ratingAt(1, 7, base),
			ratingAt(2, 9, base.Add(2*time.Hour)),
			ratingAt(3, 5, base.Add(time.Hour)),
		}

		ranked := RecencyRanks(ratings)
		require.Len(t, ranked, 3)
		assert.Equal(t, int64(2), ranked[0].ID)
		assert.Equal(t, int64(3), ranked[1].ID)
		assert.Equal(t, int64(1), ranked[2].ID)
		for i, entry := range ranked {
			assert.Equal(t, i+1, entry.Rank)
		}
	})

	t.Run("ties break by descending id", func(t *testing.T) {
		ratings := []domain.Rating{
			ratingAt(10, 6, base),
			ratingAt(11, 6, base),
		}

		ranked := RecencyRanks(ratings)
		require.Len(t, ranked, 2)
		assert.Equal(t, int64(11), ranked[0].ID)
		assert.Equal(t, int64(10), ranked[1].ID)
	})

	t.Run("input order does not matter", func(t *testing.T) {
		forward := []domain.Rating{
			ratingAt(1, 3, base),
			ratingAt(2, 4, base.Add(time.Minute)),
			ratingAt(3, 5, base.Add(2*time.Minute)),
		}
		backward := []domain.Rating{forward[2], forward[0], forward[1]}

		assert.Equal(t, RecencyRanks(forward), RecencyRanks(backward))
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, RecencyRanks(nil))
	})

	t.Run("does not mutate input", func(t *testing.T) {
		ratings := []domain.Rating{
			ratingAt(1, 3, base),
			ratingAt(2, 4, base.Add(time.Minute)),
		}
		RecencyRanks(ratings)
		assert.Equal(t, int64(1), ratings[0].ID)
	})
}

func TestPercentiles(t *testing.T) {
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	t.Run("single rating gets zero", func(t *testing.T) {
		entries := Percentiles([]domain.Rating{ratingAt(1, 10, base)})
		require.Len(t, entries, 1)
		assert.Equal(t, 0.0, entries[0].Percentile)
	})

	t.Run("spread across 0 to 1", func(t *testing.T) {
		entries := Percentiles([]domain.Rating{
			ratingAt(1, 5, base),
			ratingAt(2, 10, base),
			ratingAt(3, 1, base),
		})
		require.Len(t, entries, 3)

		assert.Equal(t, 1, entries[0].Value)
		assert.Equal(t, 0.0, entries[0].Percentile)
		assert.Equal(t, 5, entries[1].Value)
		assert.Equal(t, 0.5, entries[1].Percentile)
		assert.Equal(t, 10, entries[2].Value)
		assert.Equal(t, 1.0, entries[2].Percentile)
	})

	t.Run("duplicate values get distinct positional percentiles", func(t *testing.T) {
		entries := Percentiles([]domain.Rating{
			ratingAt(1, 7, base.Add(time.Hour)),
			ratingAt(2, 7, base),
			ratingAt(3, 9, base),
		})
		require.Len(t, entries, 3)

		// Equal values order by rated_at ascending.
		assert.Equal(t, int64(2), entries[0].ID)
		assert.Equal(t, 0.0, entries[0].Percentile)
		assert.Equal(t, int64(1), entries[1].ID)
		assert.Equal(t, 0.5, entries[1].Percentile)
		assert.Equal(t, int64(3), entries[2].ID)
		assert.Equal(t, 1.0, entries[2].Percentile)
	})

	t.Run("deterministic for identical rows", func(t *testing.T) {
		ratings := []domain.Rating{
			ratingAt(4, 6, base),
			ratingAt(5, 6, base),
			ratingAt(6, 6, base),
		}
		first := Percentiles(ratings)
		second := Percentiles([]domain.Rating{ratings[2], ratings[0], ratings[1]})
		assert.Equal(t, first, second)

		// Full ties fall back to ascending id.
		assert.Equal(t, int64(4), first[0].ID)
		assert.Equal(t, int64(6), first[2].ID)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, Percentiles(nil))
	})
}
