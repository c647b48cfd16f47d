package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/codec"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/types"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/node/chain"
)

// DefaultRefreshInterval is the time between game state reads.
const DefaultRefreshInterval = 30 * time.Second

// PollerConfig holds state poller configuration.
type PollerConfig struct {
	Game     common.Address
	Interval time.Duration
	// ReadRandomPool also reads getRandomPoolSize on every refresh.
	ReadRandomPool bool
}

// Poller periodically reads the game state and publishes snapshots.
type Poller struct {
	cfg    PollerConfig
	reader chain.Reader
	game   *codec.Codec
	log    log.Logger

	// refreshMu guards a refresh in flight. Ticks that find it held are
	// skipped instead of queued.
	refreshMu sync.Mutex

	mu     sync.RWMutex
	latest *types.GameStateSnapshot

	feed event.FeedOf[types.GameStateSnapshot]

	// Control
	stopMu  sync.Mutex
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	asyncWG sync.WaitGroup
}

// NewPoller creates a poller.
func NewPoller(cfg PollerConfig, reader chain.Reader, logger log.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultRefreshInterval
	}
	if logger == nil {
		logger = log.Root()
	}
	return &Poller{
		cfg:    cfg,
		reader: reader,
		game:   codec.NewGame(),
		log:    logger.New("component", "poller"),
	}
}

// Start starts the refresh loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.refreshLoop()

	return nil
}

// Stop stops the loop and waits for every refresh in flight. Later
// RefreshAsync calls do nothing.
func (p *Poller) Stop() {
	p.stopMu.Lock()
	p.stopped = true
	p.stopMu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.asyncWG.Wait()
}

// refreshLoop refreshes the snapshot on every tick.
func (p *Poller) refreshLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

// tick refreshes unless a refresh is already running.
func (p *Poller) tick() {
	if !p.refreshMu.TryLock() {
		p.log.Debug("Refresh still in flight, skipping tick")
		return
	}
	defer p.refreshMu.Unlock()

	if _, err := p.refreshLocked(p.ctx); err != nil && p.ctx.Err() == nil {
		p.log.Warn("Game state refresh failed", "err", err)
	}
}

// Refresh reads the game state now, waiting for a refresh in flight first.
func (p *Poller) Refresh(ctx context.Context) (types.GameStateSnapshot, error) {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()
	return p.refreshLocked(ctx)
}

// RefreshAsync refreshes in the background. Stop waits for it.
func (p *Poller) RefreshAsync() {
	p.stopMu.Lock()
	defer p.stopMu.Unlock()
	if p.stopped {
		return
	}
	p.asyncWG.Add(1)
	go func() {
		defer p.asyncWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Interval)
		defer cancel()
		if _, err := p.Refresh(ctx); err != nil {
			p.log.Warn("Background refresh failed", "err", err)
		}
	}()
}

// Latest returns the most recent snapshot, if any.
func (p *Poller) Latest() (types.GameStateSnapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.latest == nil {
		return types.GameStateSnapshot{}, false
	}
	return *p.latest, true
}

// Subscribe delivers every new snapshot to ch. Sends block until every
// subscriber has received, so ch should be buffered and drained.
func (p *Poller) Subscribe(ch chan<- types.GameStateSnapshot) event.Subscription {
	return p.feed.Subscribe(ch)
}

func (p *Poller) refreshLocked(ctx context.Context) (types.GameStateSnapshot, error) {
	var (
		snap types.GameStateSnapshot
		pool *types.RandomPoolStatus
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := p.readGameState(gctx)
		if err != nil {
			return err
		}
		snap = s
		return nil
	})
	if p.cfg.ReadRandomPool {
		g.Go(func() error {
			rp, err := p.ReadRandomPool(gctx)
			if err != nil {
				// Not every deployment exposes the pool.
				p.log.Debug("Random pool read failed", "err", err)
				return nil
			}
			pool = &rp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return types.GameStateSnapshot{}, err
	}
	snap.RandomPool = pool
	snap.UpdatedAt = time.Now()

	p.mu.Lock()
	p.latest = &snap
	p.mu.Unlock()

	p.log.Debug("Game state refreshed", "main", snap.MainJackpot, "mini", snap.MiniJackpot, "plays", snap.PlayCount)
	p.feed.Send(snap)
	return snap, nil
}

func (p *Poller) readGameState(ctx context.Context) (types.GameStateSnapshot, error) {
	req, err := p.game.Call(p.cfg.Game, codec.MethodGetGameState)
	if err != nil {
		return types.GameStateSnapshot{}, err
	}
	out, err := p.reader.CallContract(ctx, req.Msg(common.Address{}), nil)
	if err != nil {
		return types.GameStateSnapshot{}, fmt.Errorf("failed to read game state: %w", err)
	}
	w, err := p.game.DecodeWords(codec.MethodGetGameState, out)
	if err != nil {
		return types.GameStateSnapshot{}, err
	}
	return types.GameStateSnapshot{
		MainJackpot: w[0],
		MiniJackpot: w[1],
		PlayCount:   w[2],
		DaoAccrued:  w[3],
		DevAccrued:  w[4],
		EntryPrice:  w[5],
	}, nil
}

// ReadRandomPool reads the size and position of the randomness pool.
func (p *Poller) ReadRandomPool(ctx context.Context) (types.RandomPoolStatus, error) {
	req, err := p.game.Call(p.cfg.Game, codec.MethodGetRandomPoolSize)
	if err != nil {
		return types.RandomPoolStatus{}, err
	}
	out, err := p.reader.CallContract(ctx, req.Msg(common.Address{}), nil)
	if err != nil {
		return types.RandomPoolStatus{}, fmt.Errorf("failed to read random pool: %w", err)
	}
	w, err := p.game.DecodeWords(codec.MethodGetRandomPoolSize, out)
	if err != nil {
		return types.RandomPoolStatus{}, err
	}
	return types.RandomPoolStatus{Size: w[0], Index: w[1]}, nil
}
