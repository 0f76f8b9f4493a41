package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/NordCoder/checksync/internal/domain/check"
)

// NotifyChannel carries the owner id of every changed check row.
const NotifyChannel = "checks_changed"

const (
	listenerMinReconnect = 200 * time.Millisecond
	listenerMaxReconnect = 10 * time.Second
	listenerPing         = 90 * time.Second
)

type listenerSub struct {
	l      *pq.Listener
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *listenerSub) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		<-s.done
		err = s.l.Close()
	})
	return err
}

// Subscribe delivers the current result set, then a fresh one after every
// change notification for the owner. A reconnect also triggers a refetch
// since notifications sent while disconnected are lost.
func (s *CheckStore) Subscribe(ctx context.Context, q check.Query, deliver func([]check.Check)) (check.Subscription, error) {
	owner, err := s.session()
	if err != nil {
		return nil, err
	}
	if q.OwnerID != owner {
		return nil, fmt.Errorf("%w: subscribe for another owner", check.ErrPermissionDenied)
	}

	log := s.log.With(zap.String("owner", owner))
	l := pq.NewListener(s.db.DSN, listenerMinReconnect, listenerMaxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Warn("listener event", zap.Int("event", int(ev)), zap.Error(err))
		}
	})
	if err := l.Listen(NotifyChannel); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("listen %s: %w", NotifyChannel, err)
	}

	initial, err := s.QueryOnce(ctx, q)
	if err != nil {
		_ = l.Close()
		return nil, err
	}
	deliver(initial)

	lctx, cancel := context.WithCancel(ctx)
	sub := &listenerSub{l: l, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		s.listen(lctx, l, q, deliver, log)
	}()
	return sub, nil
}

func (s *CheckStore) listen(ctx context.Context, l *pq.Listener, q check.Query, deliver func([]check.Check), log *zap.Logger) {
	ticker := time.NewTicker(listenerPing)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-l.Notify:
			if !ok {
				return
			}
			// nil marks a re-established connection
			if n != nil && n.Extra != q.OwnerID {
				continue
			}
			checks, err := s.QueryOnce(ctx, q)
			if err != nil {
				if ctx.Err() == nil {
					log.Warn("refetch after notify", zap.Error(err))
				}
				continue
			}
			deliver(checks)
		case <-ticker.C:
			if err := l.Ping(); err != nil {
				log.Warn("listener ping", zap.Error(err))
			}
		}
	}
}
