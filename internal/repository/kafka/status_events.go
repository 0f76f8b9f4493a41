package kafka

import (
	"context"
	"time"

	"github.com/NordCoder/checksync/internal/domain/check"
)

// StatusChanged is the JSON body of a status transition message.
type StatusChanged struct {
	CheckID    string       `json:"check_id"`
	OwnerID    string       `json:"owner_id"`
	Name       string       `json:"name"`
	URL        string       `json:"url"`
	Old        check.Status `json:"old_status"`
	New        check.Status `json:"new_status"`
	StatusCode int          `json:"status_code,omitempty"`
	At         time.Time    `json:"at"`
}

var _ check.StatusEvents = (*StatusEvents)(nil)

// StatusEvents publishes status transitions keyed by check id, so one check's
// transitions stay ordered within a partition.
type StatusEvents struct {
	p   *Producer
	now func() time.Time
}

func NewStatusEvents(p *Producer) *StatusEvents {
	return &StatusEvents{p: p, now: time.Now}
}

func (e *StatusEvents) PublishStatusChanged(ctx context.Context, c check.Check, old, new check.Status) error {
	at := c.LastCheckedAt
	if at.IsZero() {
		at = e.now()
	}
	return e.p.PublishJSON(ctx, c.ID, StatusChanged{
		CheckID:    c.ID,
		OwnerID:    c.OwnerID,
		Name:       c.Name,
		URL:        c.URL,
		Old:        old,
		New:        new,
		StatusCode: c.LastStatusCode,
		At:         at.UTC(),
	})
}

func (e *StatusEvents) Close() error { return e.p.Close() }
