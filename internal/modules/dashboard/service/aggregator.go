package service

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dispatchdesk/internal/modules/dashboard/domain"
	dashboardout "dispatchdesk/internal/modules/dashboard/port/out"
	sessiondomain "dispatchdesk/internal/modules/session/domain"
	"dispatchdesk/internal/platform/clock"
	apperrors "dispatchdesk/internal/platform/errors"
	"dispatchdesk/internal/platform/logger"
	"dispatchdesk/internal/platform/metrics"
)

const (
	DefaultInboxSize   = 8
	DefaultPullTimeout = 15 * time.Second
	DefaultRowHeight   = 1
	LiveStopped        = "stopped"
)

type AggregatorConfig struct {
	// PullTimeout bounds each fetch attempt.
	PullTimeout time.Duration
	// RowHeight is the height of one booking row in the caller's units.
	RowHeight int
	// InboxSize bounds the number of pending push updates.
	InboxSize int
}

// View is a consistent copy of the aggregated dashboard state.
type View struct {
	Mounted        bool
	InitialLoading bool
	Loading        bool
	Role           sessiondomain.Role
	Cards          []domain.Card
	Verification   domain.Verification
	Bookings       []domain.Booking
	TotalBookings  int
	PageSize       int
	LastError      string
	Live           string
	Source         domain.Source
	Seq            uint64
	UpdatedAt      time.Time
}

type update struct {
	gen  uint64
	snap domain.Snapshot
	err  error
	pull bool
}

type liveEvent struct {
	gen uint64
	err error
}

// Aggregator merges the pull fetch and live pushes into one view state.
// A single consumer goroutine per mount is the only writer of the
// snapshot; readers copy it under a read lock.
type Aggregator struct {
	source  dashboardout.SnapshotSource
	live    *LiveChannel
	clock   clock.Clock
	log     *zap.Logger
	metrics *metrics.Metrics
	cfg     AggregatorConfig

	gen     atomic.Uint64
	changes chan struct{}

	// lifecycle serializes Mount, Unmount and Refresh.
	lifecycle sync.Mutex
	cancel    context.CancelFunc
	group     *errgroup.Group
	groupCtx  context.Context
	pulls     chan update

	mu          sync.RWMutex
	mounted     bool
	role        sessiondomain.Role
	snapshot    *domain.Snapshot
	initial     bool
	pending     int
	lastErr     string
	liveStopped bool
	pageSize    int
	seq         uint64
}

func NewAggregator(source dashboardout.SnapshotSource, live *LiveChannel, clk clock.Clock, log *zap.Logger, m *metrics.Metrics, cfg AggregatorConfig) *Aggregator {
	if cfg.PullTimeout <= 0 {
		cfg.PullTimeout = DefaultPullTimeout
	}
	if cfg.RowHeight <= 0 {
		cfg.RowHeight = DefaultRowHeight
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = DefaultInboxSize
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Aggregator{
		source:   source,
		live:     live,
		clock:    clk,
		log:      logger.OrNop(log).Named("dashboard"),
		metrics:  m,
		cfg:      cfg,
		changes:  make(chan struct{}, 1),
		pageSize: domain.DefaultPageSize,
	}
}

func (a *Aggregator) Changes() <-chan struct{} { return a.changes }

func (a *Aggregator) Mounted() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mounted
}

// Mount starts a new mount for role: one consumer, one pull and the live
// channel. Mounting twice is a no-op.
func (a *Aggregator) Mount(ctx context.Context, role sessiondomain.Role) error {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()
	if a.Mounted() {
		return nil
	}

	gen := a.gen.Add(1)
	mountCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(mountCtx)
	pulls := make(chan update)
	pushes := make(chan update, a.cfg.InboxSize)
	events := make(chan liveEvent, 1)

	a.mu.Lock()
	a.mounted = true
	a.role = role
	a.snapshot = nil
	a.initial = true
	a.pending = 1
	a.lastErr = ""
	a.liveStopped = false
	a.mu.Unlock()

	a.cancel, a.group, a.groupCtx, a.pulls = cancel, group, groupCtx, pulls

	group.Go(func() error { return a.consume(groupCtx, pulls, pushes, events) })
	group.Go(func() error { return a.pull(groupCtx, gen, pulls) })
	group.Go(func() error {
		deliver := func(snap domain.Snapshot) { a.offer(pushes, update{gen: gen, snap: snap}) }
		dropped := func(err error) {
			select {
			case events <- liveEvent{gen: gen, err: err}:
			default:
			}
		}
		err := a.live.Open(groupCtx, deliver, dropped)
		if err != nil && groupCtx.Err() == nil && !errors.Is(err, apperrors.ErrChannelClosed) {
			a.log.Warn("live channel unavailable", zap.Error(err))
			dropped(err)
		}
		return nil
	})
	a.log.Info("dashboard mounted", zap.Uint64("generation", gen), zap.Stringer("role", role))
	a.notify()
	return nil
}

// Unmount closes the live channel, cancels outstanding work and waits for
// every goroutine of the mount to exit. Anything produced afterwards is
// discarded.
func (a *Aggregator) Unmount() {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()
	if !a.Mounted() {
		return
	}
	a.mu.Lock()
	a.mounted = false
	a.mu.Unlock()
	a.gen.Add(1)

	a.live.Close()
	a.cancel()
	if err := a.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		a.log.Warn("dashboard workers", zap.Error(err))
	}
	a.cancel, a.group, a.groupCtx, a.pulls = nil, nil, nil, nil
	a.log.Info("dashboard unmounted")
	a.notify()
}

// Refresh issues another pull. Only Loading is raised for it.
func (a *Aggregator) Refresh(_ context.Context) error {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()
	if !a.Mounted() {
		return apperrors.ErrNotMounted
	}
	gen := a.gen.Load()
	a.mu.Lock()
	a.pending++
	a.mu.Unlock()
	a.notify()

	ctx, pulls := a.groupCtx, a.pulls
	a.group.Go(func() error { return a.pull(ctx, gen, pulls) })
	return nil
}

func (a *Aggregator) Resize(height int) {
	size := domain.PageSizeFor(height, a.cfg.RowHeight)
	a.mu.Lock()
	changed := size != a.pageSize
	a.pageSize = size
	a.mu.Unlock()
	if changed {
		a.notify()
	}
}

func (a *Aggregator) View() View {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v := View{
		Mounted:        a.mounted,
		InitialLoading: a.mounted && a.initial,
		Loading:        a.mounted && a.pending > 0,
		Role:           a.role,
		PageSize:       a.pageSize,
		LastError:      a.lastErr,
		Live:           a.live.State().String(),
	}
	if a.liveStopped {
		v.Live = LiveStopped
	}
	counts := domain.Counts{}
	if a.snapshot != nil {
		counts = a.snapshot.Counts
		v.Bookings = domain.Visible(a.snapshot.Bookings, a.pageSize)
		v.TotalBookings = len(a.snapshot.Bookings)
		v.Source = a.snapshot.Source
		v.Seq = a.snapshot.Seq
		v.UpdatedAt = a.snapshot.ReceivedAt
	}
	v.Cards = domain.Cards(counts, a.role)
	v.Verification = domain.VerificationOf(counts)
	return v
}

func (a *Aggregator) consume(ctx context.Context, pulls, pushes <-chan update, events <-chan liveEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case u := <-pulls:
			a.apply(u)
		case u := <-pushes:
			a.apply(u)
		case ev := <-events:
			if ev.gen != a.gen.Load() {
				continue
			}
			a.mu.Lock()
			a.liveStopped = true
			a.mu.Unlock()
			a.notify()
		}
	}
}

func (a *Aggregator) apply(u update) {
	source := domain.SourcePush.String()
	if u.pull {
		source = domain.SourcePull.String()
	}
	a.mu.Lock()
	if !a.mounted || u.gen != a.gen.Load() {
		a.mu.Unlock()
		a.metrics.IncDiscarded(source)
		return
	}
	if u.pull {
		a.initial = false
		if a.pending > 0 {
			a.pending--
		}
	}
	if u.err != nil {
		a.lastErr = u.err.Error()
		a.mu.Unlock()
		a.metrics.IncPullFailure()
		a.log.Warn("dashboard pull failed", zap.Error(u.err))
		a.notify()
		return
	}
	a.seq++
	snap := u.snap
	snap.Seq = a.seq
	snap.ReceivedAt = a.clock.Now()
	a.snapshot = &snap
	if u.pull {
		a.lastErr = ""
	}
	a.mu.Unlock()

	a.metrics.IncApplied(source)
	a.log.Debug("snapshot applied", zap.String("source", source), zap.Uint64("seq", snap.Seq), zap.Int("bookings", len(snap.Bookings)))
	a.notify()
}

func (a *Aggregator) pull(ctx context.Context, gen uint64, out chan<- update) error {
	snap, err := a.fetch(ctx)
	if ctx.Err() != nil {
		a.metrics.IncDiscarded(domain.SourcePull.String())
		return nil
	}
	snap.Source = domain.SourcePull
	select {
	case out <- update{gen: gen, snap: snap, err: err, pull: true}:
	case <-ctx.Done():
		a.metrics.IncDiscarded(domain.SourcePull.String())
	}
	return nil
}

// fetch runs one bounded attempt and retries once on network errors.
func (a *Aggregator) fetch(ctx context.Context) (domain.Snapshot, error) {
	snap, err := a.fetchOnce(ctx)
	if err == nil || ctx.Err() != nil || !retryable(err) {
		return snap, err
	}
	a.log.Debug("retrying dashboard pull", zap.Error(err))
	return a.fetchOnce(ctx)
}

func (a *Aggregator) fetchOnce(ctx context.Context) (domain.Snapshot, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, a.cfg.PullTimeout)
	defer cancel()
	return a.source.Fetch(attemptCtx)
}

func retryable(err error) bool {
	if errors.Is(err, apperrors.ErrUnauthorized) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// offer enqueues a push, dropping the oldest pending push when full.
func (a *Aggregator) offer(pushes chan update, u update) {
	for {
		select {
		case pushes <- u:
			return
		default:
		}
		select {
		case <-pushes:
			a.metrics.IncDiscarded(domain.SourcePush.String())
		default:
		}
	}
}

func (a *Aggregator) notify() {
	select {
	case a.changes <- struct{}{}:
	default:
	}
}
