package view

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"balances/internal/core"
)

type stubFetcher struct {
	mu    sync.Mutex
	calls int
	snaps []core.Snapshot
	errs  []error
	gate  chan struct{}
}

func (f *stubFetcher) FetchSnapshot(ctx context.Context) (core.Snapshot, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return core.Snapshot{}, err
	}
	if i < len(f.snaps) {
		return f.snaps[i], nil
	}
	return f.snaps[len(f.snaps)-1], nil
}

const togglePayload = `{
  "asOf": "2025-02-03T10:00:00Z",
  "accounts": [
    {"person": "Ann", "account": "ISA", "displayCurrency": "GBP", "total": 600},
    {"person": "Ann", "account": "Brokerage", "displayCurrency": "USD", "total": 250, "error": "stale price"},
    {"person": "Bob", "account": "SIPP", "displayCurrency": "GBP", "total": 200}
  ],
  "summary": {"grand": {"total_gbp": 1000}, "byPerson": {"Ann": {"total_gbp": 800}, "Bob": {"total_gbp": 200}}},
  "grandTotals": {"GBP": 1000, "USD": null, "HKD": 850}
}`

func TestLoadSnapshotRendersSurface(t *testing.T) {
	f := &stubFetcher{snaps: []core.Snapshot{mustDecode(t, togglePayload)}}
	vm := New(f, WithLocation(time.UTC))

	require.NoError(t, vm.LoadSnapshot(context.Background()))

	s := vm.Surface()
	assert.Equal(t, "As of 03/02/2025, 10:00:00", s.AsOf)
	assert.Empty(t, s.Failure)
	require.Len(t, s.People, 2)
	assert.Equal(t, "Ann", s.People[0].Name)
	assert.Equal(t, "80.0% of grand total", s.People[0].Share)
	assert.Equal(t, "stale price", s.People[0].Accounts[1].Error)
	assert.Equal(t, "$250.00", s.People[0].Accounts[1].Total)
	assert.Equal(t, "£1,000.00", s.GrandTotal)
	assert.Empty(t, s.GrandNote)
	assert.Equal(t, core.GBP, vm.Selected())

	v, ok := vm.View()
	require.True(t, ok)
	assert.Len(t, v.Groups, 2)
}

func TestSelectDisplayCurrency(t *testing.T) {
	f := &stubFetcher{snaps: []core.Snapshot{mustDecode(t, togglePayload)}}
	vm := New(f)
	require.NoError(t, vm.LoadSnapshot(context.Background()))

	d := vm.SelectDisplayCurrency("GBP")
	assert.Equal(t, "£1,000.00", d.Value)
	assert.Empty(t, d.Note)

	d = vm.SelectDisplayCurrency("USD")
	assert.Equal(t, "—", d.Value)
	assert.Contains(t, d.Note, "unavailable")

	d = vm.SelectDisplayCurrency("HKD")
	assert.Equal(t, "HK$850.00", d.Value)
	assert.Contains(t, d.Note, "Converted server-side")

	s := vm.Surface()
	assert.Equal(t, "HK$850.00", s.GrandTotal)
	assert.Equal(t, []CurrencyPill{{core.GBP, false}, {core.USD, false}, {core.HKD, true}}, s.Currencies)

	d = vm.SelectDisplayCurrency("jpy")
	assert.Equal(t, core.GBP, d.Currency, "unknown codes select GBP")
	assert.Equal(t, "£1,000.00", d.Value)

	assert.Equal(t, 1, f.calls, "toggling never refetches")
	assert.Len(t, vm.Surface().People, 2, "toggling leaves the groups alone")
}

func TestSelectBeforeAnyLoad(t *testing.T) {
	vm := New(&stubFetcher{})

	s := vm.Surface()
	assert.Empty(t, s.People)
	assert.Equal(t, Pills(core.GBP), s.Currencies)

	d := vm.SelectDisplayCurrency("GBP")
	assert.Equal(t, "£0.00", d.Value)
	d = vm.SelectDisplayCurrency("USD")
	assert.Equal(t, Placeholder, d.Value)

	_, ok := vm.View()
	assert.False(t, ok)
}

func TestLoadFailureReplacesContent(t *testing.T) {
	cause := errors.New("dial tcp 127.0.0.1:8000: connect: connection refused")
	f := &stubFetcher{
		snaps: []core.Snapshot{mustDecode(t, togglePayload)},
		errs:  []error{nil, cause},
	}
	vm := New(f)

	require.NoError(t, vm.LoadSnapshot(context.Background()))
	require.Len(t, vm.Surface().People, 2)

	err := vm.LoadSnapshot(context.Background())
	require.ErrorIs(t, err, cause)

	s := vm.Surface()
	assert.Empty(t, s.People)
	assert.Empty(t, s.AsOf)
	assert.Empty(t, s.GrandTotal)
	assert.Equal(t, "Failed to load: "+cause.Error(), s.Failure)

	_, ok := vm.View()
	assert.False(t, ok, "a failed load drops the held view")

	d := vm.SelectDisplayCurrency("HKD")
	assert.Equal(t, Placeholder, d.Value, "previous snapshot is gone")
}

func TestRepeatedLoadsDoNotAccumulate(t *testing.T) {
	f := &stubFetcher{snaps: []core.Snapshot{mustDecode(t, togglePayload)}}
	vm := New(f)

	for i := 0; i < 3; i++ {
		require.NoError(t, vm.LoadSnapshot(context.Background()))
	}

	s := vm.Surface()
	require.Len(t, s.People, 2)
	assert.Len(t, s.People[0].Accounts, 2)
	assert.Len(t, s.People[1].Accounts, 1)
	assert.Equal(t, 3, f.calls)
}

func TestLoadResetsSelection(t *testing.T) {
	f := &stubFetcher{snaps: []core.Snapshot{mustDecode(t, togglePayload)}}
	vm := New(f)
	require.NoError(t, vm.LoadSnapshot(context.Background()))

	vm.SelectDisplayCurrency("HKD")
	require.NoError(t, vm.LoadSnapshot(context.Background()))

	assert.Equal(t, core.GBP, vm.Selected())
	assert.Equal(t, "£1,000.00", vm.Surface().GrandTotal)
}

func TestLoadIsNotReentrant(t *testing.T) {
	f := &stubFetcher{
		snaps: []core.Snapshot{mustDecode(t, togglePayload)},
		gate:  make(chan struct{}),
	}
	vm := New(f)

	done := make(chan error, 1)
	go func() { done <- vm.LoadSnapshot(context.Background()) }()

	require.Eventually(t, vm.Loading, time.Second, 5*time.Millisecond)

	s := vm.Surface()
	assert.Empty(t, s.People, "content is cleared before the fetch completes")
	assert.Empty(t, s.Failure)

	assert.ErrorIs(t, vm.LoadSnapshot(context.Background()), ErrLoadInProgress)

	d := vm.SelectDisplayCurrency("USD")
	assert.Equal(t, Placeholder, d.Value, "toggle works without waiting for the load")

	close(f.gate)
	require.NoError(t, <-done)
	assert.False(t, vm.Loading())
	assert.Equal(t, 1, f.calls)
}

func TestLoadHookReceivesOutcome(t *testing.T) {
	f := &stubFetcher{
		snaps: []core.Snapshot{mustDecode(t, togglePayload)},
		errs:  []error{nil, errors.New("boom")},
	}
	var outcomes []LoadOutcome
	vm := New(f, WithLoadHook(func(_ context.Context, o LoadOutcome) {
		outcomes = append(outcomes, o)
	}))

	require.NoError(t, vm.LoadSnapshot(context.Background()))
	require.Error(t, vm.LoadSnapshot(context.Background()))

	require.Len(t, outcomes, 2)
	assert.NoError(t, outcomes[0].Err)
	assert.Equal(t, 3, outcomes[0].View.AccountCount())
	assert.Equal(t, 1, outcomes[0].View.FailedAccounts())
	assert.EqualError(t, outcomes[1].Err, "boom")
	assert.Empty(t, outcomes[1].View.Groups)
}

func TestRefreshReturnsRenderedSurface(t *testing.T) {
	f := &stubFetcher{snaps: []core.Snapshot{mustDecode(t, togglePayload)}}
	vm := New(f, WithLocation(time.UTC))

	s, err := vm.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, s.People, 2)
	assert.Equal(t, "£1,000.00", s.GrandTotal)

	vm.SelectDisplayCurrency("HKD")
	assert.Equal(t, "£1,000.00", s.GrandTotal, "returned surface is not affected by later toggles")
	assert.Equal(t, "HK$850.00", vm.Surface().GrandTotal)

	f.errs = []error{nil, errors.New("down")}
	s, err = vm.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, FailurePrefix+"down", s.Failure)
	assert.Empty(t, s.People)
}
