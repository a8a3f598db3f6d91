package view

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"balances/internal/core"
	"balances/internal/log"
)

// ErrLoadInProgress is returned when LoadSnapshot is called while another
// load has not finished.
var ErrLoadInProgress = errors.New("a snapshot load is already in progress")

// Fetcher is the snapshot source a ViewModel loads from.
type Fetcher interface {
	FetchSnapshot(ctx context.Context) (core.Snapshot, error)
}

// LoadOutcome describes one finished load.
type LoadOutcome struct {
	View     View
	Err      error
	Duration time.Duration
}

// LoadHook runs after every finished load, outside the model's lock.
type LoadHook func(ctx context.Context, o LoadOutcome)

// initialTotals is what the toggle reads while no snapshot is held.
func initialTotals() core.GrandTotals {
	return core.GrandTotals{core.BaseCurrency: decimal.NewNullDecimal(decimal.Zero)}
}

// ViewModel owns the held snapshot view, the selected display currency and
// the rendered Surface. It allows one load at a time; toggles never block on
// the network.
type ViewModel struct {
	fetcher Fetcher
	loc     *time.Location
	logger  *log.Logger
	hooks   []LoadHook

	mu       sync.Mutex
	loading  bool
	view     View
	hasView  bool
	totals   core.GrandTotals
	selected core.Currency
	surface  Surface
}

type Option func(*ViewModel)

// WithLocation sets the zone used for the as-of label.
func WithLocation(loc *time.Location) Option {
	return func(vm *ViewModel) {
		if loc != nil {
			vm.loc = loc
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(vm *ViewModel) {
		if l != nil {
			vm.logger = l.WithComponent(log.ComponentView)
		}
	}
}

// WithLoadHook registers fn to run after each load.
func WithLoadHook(fn LoadHook) Option {
	return func(vm *ViewModel) { vm.hooks = append(vm.hooks, fn) }
}

func New(f Fetcher, opts ...Option) *ViewModel {
	vm := &ViewModel{
		fetcher:  f,
		loc:      time.Local,
		logger:   log.Discard(),
		totals:   initialTotals(),
		selected: core.BaseCurrency,
		surface:  Surface{Currencies: Pills(core.BaseCurrency)},
	}
	for _, opt := range opts {
		opt(vm)
	}
	return vm
}

// LoadSnapshot fetches a fresh snapshot and re-renders the surface.
//
// The previous content and snapshot are dropped before the fetch starts and
// the selection returns to the base currency. On failure the surface holds
// only the failure message and the error is returned as well.
func (vm *ViewModel) LoadSnapshot(ctx context.Context) error {
	_, err := vm.Refresh(ctx)
	return err
}

// Refresh is LoadSnapshot that also returns the surface exactly as this load
// rendered it, unaffected by toggles or loads that happen afterwards.
func (vm *ViewModel) Refresh(ctx context.Context) (Surface, error) {
	vm.mu.Lock()
	if vm.loading {
		vm.mu.Unlock()
		return Surface{}, ErrLoadInProgress
	}
	vm.loading = true
	vm.view, vm.hasView = View{}, false
	vm.totals = initialTotals()
	vm.selected = core.BaseCurrency
	Clear(&vm.surface)
	vm.surface.Currencies = Pills(core.BaseCurrency)
	vm.mu.Unlock()

	start := time.Now()
	snap, err := vm.fetcher.FetchSnapshot(ctx)

	vm.mu.Lock()
	outcome := LoadOutcome{Err: err}
	if err != nil {
		RenderFailure(&vm.surface, err)
	} else {
		v := BuildView(snap, vm.loc)
		Render(&vm.surface, v)
		vm.view, vm.hasView = v, true
		vm.totals = snap.GrandTotals
		SetGrandDisplay(&vm.surface, vm.totals, core.BaseCurrency)
		outcome.View = v
	}
	rendered := vm.surface
	vm.loading = false
	vm.mu.Unlock()

	outcome.Duration = time.Since(start)
	vm.logLoad(ctx, outcome)
	for _, hook := range vm.hooks {
		hook(ctx, outcome)
	}
	return rendered, err
}

// SelectDisplayCurrency switches the grand total to code using the held
// totals only. Unrecognized codes select GBP.
func (vm *ViewModel) SelectDisplayCurrency(code string) GrandDisplay {
	c := core.ParseCurrency(code)

	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.selected = c
	return SetGrandDisplay(&vm.surface, vm.totals, c)
}

// Selected returns the currently selected display currency.
func (vm *ViewModel) Selected() core.Currency {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.selected
}

// Surface returns a copy of what is currently rendered. Render and
// SetGrandDisplay always allocate fresh slices, so the copy is never written
// to afterwards.
func (vm *ViewModel) Surface() Surface {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.surface
}

// View returns the held view, false when no snapshot is held.
func (vm *ViewModel) View() (View, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.view, vm.hasView
}

// Loading reports whether a load is in flight.
func (vm *ViewModel) Loading() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.loading
}

func (vm *ViewModel) logLoad(ctx context.Context, o LoadOutcome) {
	log.NewStructuredLogger(vm.logger).LogSnapshotLoad(ctx,
		o.View.AsOfLabel, len(o.View.Groups), o.View.AccountCount(), o.View.FailedAccounts(),
		o.Duration.Milliseconds(), o.Err)
}
