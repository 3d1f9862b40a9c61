package metrics

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

const buckets = 24

// Mock synthesizes placeholder chart data. Values are regenerated fresh on
// every call; nothing is persisted.
type Mock struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewMock creates a mock metrics source.
func NewMock() *Mock {
	return &Mock{
		rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now: time.Now,
	}
}

// SystemSeries returns 24 hourly buckets of independently randomized CPU,
// memory, and request-rate figures: CPU in [20,50)%, memory in [30,70)%,
// requests per hour in [50,200).
func (m *Mock) SystemSeries(ctx context.Context) ([]SystemPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	base := m.now().Truncate(time.Hour)
	points := make([]SystemPoint, 0, buckets)
	for i := buckets - 1; i >= 0; i-- {
		points = append(points, SystemPoint{
			Time:     base.Add(-time.Duration(i) * time.Hour),
			CPU:      20 + m.rng.Float64()*30,
			Memory:   30 + m.rng.Float64()*40,
			Requests: 50 + m.rng.IntN(150),
		})
	}
	return points, nil
}

// ActivitySeries returns 24 hourly buckets of a random-walked active-user
// count: seeded in [100,150], perturbed by at most ±10 per step, never
// dropping below 50.
func (m *Mock) ActivitySeries(ctx context.Context) ([]ActivityPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	base := m.now().Truncate(time.Hour)
	count := 100 + m.rng.IntN(51)

	points := make([]ActivityPoint, 0, buckets)
	for i := buckets - 1; i >= 0; i-- {
		count += m.rng.IntN(21) - 10
		if count < 50 {
			count = 50
		}
		points = append(points, ActivityPoint{
			Time:        base.Add(-time.Duration(i) * time.Hour),
			ActiveUsers: count,
		})
	}
	return points, nil
}
