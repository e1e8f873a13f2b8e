package pipeline

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/dvf-prices/internal/aggregate"
	"github.com/sells-group/dvf-prices/internal/communes"
	"github.com/sells-group/dvf-prices/internal/dvf"
)

// --- Reference loader mock ---

type mockLoader struct {
	mock.Mock
}

func (m *mockLoader) Load(ctx context.Context) (communes.Index, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(communes.Index), args.Error(1)
}

// --- Source resolver mock ---

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, today time.Time) ([]dvf.Source, error) {
	args := m.Called(ctx, today)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dvf.Source), args.Error(1)
}

// --- Aggregator mock ---

type mockAggregator struct {
	mock.Mock
}

func (m *mockAggregator) Aggregate(ctx context.Context, paths []string, start, today time.Time) ([]aggregate.Row, error) {
	args := m.Called(ctx, paths, start, today)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]aggregate.Row), args.Error(1)
}
