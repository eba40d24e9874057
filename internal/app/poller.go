package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tribela/picrew-amuse/internal/domain"
	"github.com/tribela/picrew-amuse/internal/festival"
	"github.com/tribela/picrew-amuse/internal/metrics"
	"github.com/tribela/picrew-amuse/internal/platform/correlation"
	"github.com/tribela/picrew-amuse/internal/statestore"
)

// TickResult is the explicit outcome of one poll tick. A transient error
// abandons the tick; the loop always proceeds to the next interval.
type TickResult struct {
	Err error
}

// Poller owns the festival state and runs the fixed-interval loop. Ticks
// never overlap: each blocks until its persistence write completes.
type Poller struct {
	engine   *festival.Engine
	client   domain.SocialClient
	store    *statestore.Store
	clock    clockwork.Clock
	interval time.Duration

	state festival.State
}

// NewPoller restores the persisted snapshot and prepares the loop.
func NewPoller(engine *festival.Engine, client domain.SocialClient, store *statestore.Store, clock clockwork.Clock, interval time.Duration) *Poller {
	snap := store.Load()
	if snap.Festival != nil {
		slog.Info("Resuming festival from persisted state",
			"state", snap.Festival.State.String(),
			"prepare_deadline", snap.Festival.PrepareDeadline,
		)
		metrics.FestivalActive.Set(1)
	}

	return &Poller{
		engine:   engine,
		client:   client,
		store:    store,
		clock:    clock,
		interval: interval,
		state:    festival.State{Cursor: snap.Cursor, Festival: snap.Festival},
	}
}

// Run executes an immediate first tick and then one tick per interval until
// ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.runTick(ctx)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			p.runTick(ctx)
		case <-ctx.Done():
			slog.Info("Poll loop stopped")
			return
		}
	}
}

func (p *Poller) runTick(ctx context.Context) {
	tickCtx := correlation.WithID(ctx, correlation.NewID())

	res := p.Tick(tickCtx)
	if res.Err != nil {
		// Transient remote failures land here; the persisted state is
		// untouched so the next tick retries naturally.
		slog.WarnContext(tickCtx, "Tick abandoned", "error", res.Err)
		metrics.TicksTotal.WithLabelValues("error").Inc()
		return
	}
	metrics.TicksTotal.WithLabelValues("ok").Inc()
}

// Tick runs one poll cycle: deadline-driven transitions first, then mention
// ingestion, then the durability point.
func (p *Poller) Tick(ctx context.Context) TickResult {
	now := p.clock.Now()

	if cfg := p.state.Festival; cfg != nil {
		if cfg.State == domain.StatePrepare && !now.Before(cfg.PrepareDeadline) {
			slog.InfoContext(ctx, "Prepare deadline reached")
			if err := p.engine.PrepareEnd(ctx, &p.state); err != nil {
				return TickResult{Err: err}
			}
		}
	}
	if cfg := p.state.Festival; cfg != nil {
		if cfg.State == domain.StateQuestionPublished && !now.Before(cfg.NameRevealAt) {
			slog.InfoContext(ctx, "Name reveal deadline reached")
			if err := p.engine.RevealEntries(ctx, &p.state); err != nil {
				return TickResult{Err: err}
			}
		}
	}
	if cfg := p.state.Festival; cfg != nil {
		if cfg.State == domain.StateNameRevealed && !now.Before(cfg.AnswerRevealAt) {
			slog.InfoContext(ctx, "Answer reveal deadline reached")
			if err := p.engine.RevealAnswer(ctx, &p.state); err != nil {
				return TickResult{Err: err}
			}
		}
	}

	mentions, err := p.client.MentionsSince(ctx, p.state.Cursor)
	if err != nil {
		return TickResult{Err: fmt.Errorf("listing mentions: %w", err)}
	}
	for _, m := range mentions {
		if err := p.engine.HandleMention(ctx, &p.state, m); err != nil {
			return TickResult{Err: err}
		}
		metrics.MentionsProcessed.Inc()
	}

	if err := p.store.Save(statestore.Snapshot{Cursor: p.state.Cursor, Festival: p.state.Festival}); err != nil {
		return TickResult{Err: err}
	}
	return TickResult{}
}
