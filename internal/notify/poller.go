package notify

import (
	"context"
	"sync/atomic"
	"time"

	"mesa-table-service/internal/messaging"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Poller drains scheduled_notifications whose time has come and hands them to
// the messenger. It runs on a fixed interval; a tick that fires while the
// previous run is still executing is dropped, not queued, so a slow broker
// can never stack up concurrent runs.
type Poller struct {
	DB        *pgxpool.Pool
	Messenger messaging.Messenger
	Logger    *zap.Logger
	Interval  time.Duration

	inFlight atomic.Bool
	dispatch func(ctx context.Context)
}

func NewPoller(db *pgxpool.Pool, messenger messaging.Messenger, logger *zap.Logger, interval time.Duration) *Poller {
	p := &Poller{DB: db, Messenger: messenger, Logger: logger, Interval: interval}
	p.dispatch = p.dispatchDue
	return p
}

func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.Logger.Debug("notification tick dropped; previous run still in flight")
		return
	}
	go func() {
		defer p.inFlight.Store(false)
		p.dispatch(ctx)
	}()
}

func (p *Poller) dispatchDue(ctx context.Context) {
	rows, err := p.DB.Query(ctx, `
		select id, channel_id, message
		from scheduled_notifications
		where sent_at is null and scheduled_at <= now()
		order by scheduled_at
		limit 100
	`)
	if err != nil {
		p.Logger.Error("scheduled notification query failed", zap.Error(err))
		return
	}

	type due struct {
		id        int64
		channelID string
		message   string
	}
	pending := make([]due, 0)
	for rows.Next() {
		var d due
		if err := rows.Scan(&d.id, &d.channelID, &d.message); err != nil {
			p.Logger.Error("scheduled notification scan failed", zap.Error(err))
			continue
		}
		pending = append(pending, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		p.Logger.Error("scheduled notification query failed", zap.Error(err))
		return
	}

	for _, d := range pending {
		if err := p.Messenger.SendMessage(ctx, d.channelID, d.message, nil); err != nil {
			// Left unsent; the next tick retries it.
			continue
		}
		if _, err := p.DB.Exec(ctx, `update scheduled_notifications set sent_at = now() where id = $1`, d.id); err != nil {
			p.Logger.Error("scheduled notification update failed", zap.Int64("id", d.id), zap.Error(err))
		}
	}
}
