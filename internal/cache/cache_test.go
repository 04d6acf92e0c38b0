package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hq-entitlements/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSource is a mock implementation of Source.
type MockSource struct {
	mock.Mock
}

func (m *MockSource) LoadAll(ctx context.Context) ([]model.Order, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func testOrder(id, code string) model.Order {
	return model.Order{
		OrderID:      id,
		BuyerEmail:   "buyer@example.com",
		DownloadCode: code,
		CreatedAt:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Items: []model.OrderItem{
			{ImageID: "img-1", HQURL: "https://cdn.example.com/img-1.jpg"},
		},
	}
}

func TestCache_EnsureLoaded(t *testing.T) {
	ctx := context.Background()
	source := new(MockSource)
	source.On("LoadAll", ctx).Return([]model.Order{
		testOrder("ORD-1", "AAAABBBBCCCC"),
		testOrder("ORD-2", "DDDDEEEEFFFF"),
	}, nil).Once()

	c := New(source, zerolog.Nop())
	assert.False(t, c.Hydrated())

	require.NoError(t, c.EnsureLoaded(ctx))
	require.NoError(t, c.EnsureLoaded(ctx))

	assert.True(t, c.Hydrated())
	assert.True(t, c.DurablyLoaded())
	assert.Equal(t, 2, c.Len())
	source.AssertNumberOfCalls(t, "LoadAll", 1)
}

func TestCache_EnsureLoaded_ConcurrentFirstCalls(t *testing.T) {
	ctx := context.Background()
	source := new(MockSource)
	source.On("LoadAll", ctx).Return([]model.Order{testOrder("ORD-1", "AAAABBBBCCCC")}, nil)

	c := New(source, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.EnsureLoaded(ctx))
		}()
	}
	wg.Wait()

	source.AssertNumberOfCalls(t, "LoadAll", 1)
}

func TestCache_EnsureLoaded_Failure(t *testing.T) {
	ctx := context.Background()
	source := new(MockSource)
	source.On("LoadAll", ctx).Return(nil, errors.New("disk on fire")).Once()
	source.On("LoadAll", ctx).Return([]model.Order{testOrder("ORD-1", "AAAABBBBCCCC")}, nil).Once()

	c := New(source, zerolog.Nop())

	err := c.EnsureLoaded(ctx)
	require.Error(t, err)
	assert.False(t, c.Hydrated())
	assert.False(t, c.DurablyLoaded())

	c.MarkHydrated()
	assert.True(t, c.Hydrated())
	assert.False(t, c.DurablyLoaded())

	// A retry after recovery still merges the durable orders.
	require.NoError(t, c.EnsureLoaded(ctx))
	assert.True(t, c.DurablyLoaded())
	_, ok := c.GetByID("ORD-1")
	assert.True(t, ok)
}

func TestCache_EnsureLoaded_KeepsInProcessWrites(t *testing.T) {
	ctx := context.Background()

	stale := testOrder("ORD-1", "AAAABBBBCCCC")
	source := new(MockSource)
	source.On("LoadAll", ctx).Return([]model.Order{stale, testOrder("ORD-2", "DDDDEEEEFFFF")}, nil)

	c := New(source, zerolog.Nop())

	fresh := testOrder("ORD-1", "AAAABBBBCCCC")
	fresh.Used = true
	c.Upsert(fresh)

	require.NoError(t, c.EnsureLoaded(ctx))

	got, ok := c.GetByID("ORD-1")
	require.True(t, ok)
	assert.True(t, got.Used)
	assert.Equal(t, 2, c.Len())
}

func TestCache_GetByCode(t *testing.T) {
	c := New(new(MockSource), zerolog.Nop())
	c.Upsert(testOrder("ORD-1", "AB12CD34EF56"))
	c.Upsert(testOrder("ORD-LEGACY", " xyzxyzxyzxyz "))

	tests := []struct {
		name   string
		code   string
		wantID string
		found  bool
	}{
		{name: "Exact", code: "AB12CD34EF56", wantID: "ORD-1", found: true},
		{name: "Lower case", code: "ab12cd34ef56", wantID: "ORD-1", found: true},
		{name: "Surrounding spaces", code: "  ab12CD34ef56 ", wantID: "ORD-1", found: true},
		{name: "Legacy mixed case", code: "XYZXYZXYZXYZ", wantID: "ORD-LEGACY", found: true},
		{name: "Unknown", code: "ZZZZZZZZZZZZ", found: false},
		{name: "Empty", code: "", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := c.GetByCode(tt.code)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.wantID, got.OrderID)
			}
		})
	}
}

func TestCache_Upsert_KeepsIndexesInStep(t *testing.T) {
	c := New(new(MockSource), zerolog.Nop())
	c.Upsert(testOrder("ORD-1", "AAAABBBBCCCC"))

	c.Upsert(testOrder("ORD-1", "DDDDEEEEFFFF"))

	assert.False(t, c.HasCode("AAAABBBBCCCC"))
	assert.True(t, c.HasCode("DDDDEEEEFFFF"))
	assert.Equal(t, 1, c.Len())
}

func TestCache_ReturnsCopies(t *testing.T) {
	c := New(new(MockSource), zerolog.Nop())
	order := testOrder("ORD-1", "AAAABBBBCCCC")
	c.Upsert(order)

	order.Items[0].HQURL = "mutated"

	got, ok := c.GetByID("ORD-1")
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/img-1.jpg", got.Items[0].HQURL)

	got.Downloads = append(got.Downloads, model.DownloadEvent{ItemID: "img-1"})
	again, _ := c.GetByID("ORD-1")
	assert.Empty(t, again.Downloads)

	all := c.All()
	require.Len(t, all, 1)
	all[0].Used = true
	again, _ = c.GetByID("ORD-1")
	assert.False(t, again.Used)
}
