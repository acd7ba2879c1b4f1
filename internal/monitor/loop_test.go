// internal/monitor/loop_test.go
package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/solana-dipbuyer/internal/marketdata"
)

// recorder собирает уведомления и записи истории
type recorder struct {
	mu      sync.Mutex
	entries []string
}

func (r *recorder) Notify(_ context.Context, text string) error {
	r.add(text)
	return nil
}

func (r *recorder) Record(_ context.Context, text string) error {
	r.add(text)
	return nil
}

func (r *recorder) add(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, text)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.entries...)
}

// scriptedMarket returns market caps in order, then repeats the last one.
type scriptedMarket struct {
	caps  []float64
	err   error
	calls int
}

func (m *scriptedMarket) FetchMarketCap(_ context.Context, _ string) (float64, error) {
	m.calls++
	if m.err != nil {
		return 0, m.err
	}
	i := m.calls - 1
	if i >= len(m.caps) {
		i = len(m.caps) - 1
	}
	return m.caps[i], nil
}

type MockBuyer struct {
	mock.Mock
}

func (m *MockBuyer) ExecuteBuy(ctx context.Context, token string, amountSOL float64) (string, error) {
	args := m.Called(ctx, token, amountSOL)
	return args.String(0), args.Error(1)
}

type loopFixture struct {
	registry *Registry
	settings *Settings
	market   *scriptedMarket
	buyer    *MockBuyer
	notes    *recorder
	history  *recorder
	loop     *Loop
}

func newLoopFixture(t *testing.T, threshold int64, market *scriptedMarket) *loopFixture {
	t.Helper()
	settings, err := NewSettings(RuntimeConfig{MarketCapThresholdUSD: threshold, BuyAmountSOL: 0.05})
	require.NoError(t, err)

	f := &loopFixture{
		registry: NewRegistry(fixedClock(testNow)),
		settings: settings,
		market:   market,
		buyer:    new(MockBuyer),
		notes:    &recorder{},
		history:  &recorder{},
	}
	f.loop = NewLoop(LoopConfig{
		Registry:   f.registry,
		Settings:   settings,
		MarketData: market,
		Buyer:      f.buyer,
		Notifier:   f.notes,
		History:    f.history,
		Now:        fixedClock(testNow),
		Logger:     zaptest.NewLogger(t),
	})
	return f
}

func TestCycle_IdleDoesNothing(t *testing.T) {
	f := newLoopFixture(t, 300_000, &scriptedMarket{caps: []float64{1}})

	assert.Equal(t, OutcomeIdle, f.loop.Cycle(context.Background()))
	assert.Zero(t, f.market.calls)
	assert.Empty(t, f.notes.all())
	assert.Empty(t, f.history.all())
}

func TestCycle_TimeoutWinsOverBuy(t *testing.T) {
	f := newLoopFixture(t, 300_000, &scriptedMarket{caps: []float64{1}})
	// ttl -1s: срок истёк секунду назад, market cap ниже порога
	f.registry.StartWatch("MintAddr", "TKN", -time.Second)

	assert.Equal(t, OutcomeTimeout, f.loop.Cycle(context.Background()))

	assert.Equal(t, []string{"Timeout: abandoning TKN"}, f.notes.all())
	assert.Equal(t, []string{"Timeout: abandoning TKN"}, f.history.all())
	_, ok := f.registry.CurrentWatch()
	assert.False(t, ok)
	assert.Zero(t, f.market.calls)
	f.buyer.AssertNotCalled(t, "ExecuteBuy", mock.Anything, mock.Anything, mock.Anything)
}

func TestCycle_BuyAtExactThreshold(t *testing.T) {
	f := newLoopFixture(t, 300_000, &scriptedMarket{caps: []float64{300_000}})
	f.registry.StartWatch("MintAddr", "TKN", DefaultWatchTTL)
	f.buyer.On("ExecuteBuy", mock.Anything, "MintAddr", 0.05).Return("5igSig", nil).Once()

	assert.Equal(t, OutcomeBought, f.loop.Cycle(context.Background()))

	f.buyer.AssertExpectations(t)
	_, ok := f.registry.CurrentWatch()
	assert.False(t, ok)
	assert.Equal(t, []string{
		"TKN dropped to $300,000 - BUYING 0.05 SOL!",
		"Transaction hash: 5igSig",
	}, f.notes.all())
	assert.Equal(t, []string{
		"TKN dropped to $300,000 - BUYING 0.05 SOL!",
		"TX: 5igSig",
	}, f.history.all())
}

func TestCycle_FetchFailureKeepsWatch(t *testing.T) {
	upstream := &marketdata.Error{Endpoint: "basic-info", Err: errors.New("503")}
	f := newLoopFixture(t, 300_000, &scriptedMarket{err: upstream})
	before := f.registry.StartWatch("MintAddr", "TKN", DefaultWatchTTL)

	assert.Equal(t, OutcomeFetchFailed, f.loop.Cycle(context.Background()))

	after, ok := f.registry.CurrentWatch()
	require.True(t, ok)
	assert.Equal(t, before, after)
	assert.Empty(t, f.notes.all())
	require.Len(t, f.history.all(), 1)
	assert.Contains(t, f.history.all()[0], "Error: ")
	f.buyer.AssertNotCalled(t, "ExecuteBuy", mock.Anything, mock.Anything, mock.Anything)
}

func TestCycle_BuysOnlyOnceAfterDrop(t *testing.T) {
	f := newLoopFixture(t, 300_000, &scriptedMarket{caps: []float64{500_000, 420_000, 250_000}})
	f.registry.StartWatch("MintAddr", "TKN", DefaultWatchTTL)
	f.buyer.On("ExecuteBuy", mock.Anything, "MintAddr", 0.05).Return("5igSig", nil).Once()

	ctx := context.Background()
	assert.Equal(t, OutcomeWatching, f.loop.Cycle(ctx))
	assert.Equal(t, OutcomeWatching, f.loop.Cycle(ctx))
	assert.Equal(t, OutcomeBought, f.loop.Cycle(ctx))
	assert.Equal(t, OutcomeIdle, f.loop.Cycle(ctx))

	f.buyer.AssertNumberOfCalls(t, "ExecuteBuy", 1)
	assert.Equal(t, 3, f.market.calls)
}

func TestCycle_FailedBuyClearsWatch(t *testing.T) {
	f := newLoopFixture(t, 300_000, &scriptedMarket{caps: []float64{100}})
	f.registry.StartWatch("MintAddr", "TKN", DefaultWatchTTL)
	f.buyer.On("ExecuteBuy", mock.Anything, "MintAddr", 0.05).Return("", errors.New("no route")).Once()

	assert.Equal(t, OutcomeBuyFailed, f.loop.Cycle(context.Background()))

	_, ok := f.registry.CurrentWatch()
	assert.False(t, ok)
	notes := f.notes.all()
	require.Len(t, notes, 2)
	assert.Equal(t, "Buy of TKN failed: no route", notes[1])
	assert.Equal(t, "Error: no route", f.history.all()[1])
}

func TestCycle_NewWatchDuringBuyIsKept(t *testing.T) {
	f := newLoopFixture(t, 300_000, &scriptedMarket{caps: []float64{100}})
	f.registry.StartWatch("MintAddr", "TKN", DefaultWatchTTL)
	f.buyer.On("ExecuteBuy", mock.Anything, "MintAddr", 0.05).
		Run(func(mock.Arguments) { f.registry.StartWatch("NextMint", "NXT", DefaultWatchTTL) }).
		Return("5igSig", nil).Once()

	assert.Equal(t, OutcomeBought, f.loop.Cycle(context.Background()))

	w, ok := f.registry.CurrentWatch()
	require.True(t, ok)
	assert.Equal(t, "NextMint", w.Address)
}

// settingsChanger меняет сумму покупки в момент уведомления о покупке
type settingsChanger struct {
	recorder
	settings *Settings
}

func (c *settingsChanger) Notify(ctx context.Context, text string) error {
	if err := c.settings.SetBuyAmount(1.5); err != nil {
		return err
	}
	return c.recorder.Notify(ctx, text)
}

func TestCycle_BuysAnnouncedAmount(t *testing.T) {
	f := newLoopFixture(t, 300_000, &scriptedMarket{caps: []float64{100}})
	notes := &settingsChanger{settings: f.settings}
	f.loop.notifier = notes
	f.registry.StartWatch("MintAddr", "TKN", DefaultWatchTTL)
	f.buyer.On("ExecuteBuy", mock.Anything, "MintAddr", 0.05).Return("5igSig", nil).Once()

	assert.Equal(t, OutcomeBought, f.loop.Cycle(context.Background()))

	f.buyer.AssertExpectations(t)
	assert.Equal(t, "TKN dropped to $100 - BUYING 0.05 SOL!", notes.all()[0])
	assert.Equal(t, 1.5, f.settings.BuyAmount(), "the update applies to the next buy")
}

type panickingMarket struct{}

func (panickingMarket) FetchMarketCap(context.Context, string) (float64, error) {
	panic("boom")
}

func TestCycle_RecoversFromPanic(t *testing.T) {
	f := newLoopFixture(t, 300_000, &scriptedMarket{caps: []float64{1}})
	f.loop.market = panickingMarket{}
	f.registry.StartWatch("MintAddr", "TKN", DefaultWatchTTL)

	assert.NotPanics(t, func() {
		assert.Equal(t, OutcomePanic, f.loop.Cycle(context.Background()))
	})
	_, ok := f.registry.CurrentWatch()
	assert.True(t, ok)
}

func TestLoopRun_StopsOnCancel(t *testing.T) {
	f := newLoopFixture(t, 300_000, &scriptedMarket{caps: []float64{500_000}})
	f.loop.interval = 5 * time.Millisecond
	f.registry.StartWatch("MintAddr", "TKN", DefaultWatchTTL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := f.loop.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Positive(t, f.market.calls)
	_, ok := f.registry.CurrentWatch()
	assert.True(t, ok)
}
