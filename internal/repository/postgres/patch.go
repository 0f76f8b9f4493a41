package postgres

import (
	"fmt"
	"strings"
	"time"

	"github.com/NordCoder/checksync/internal/domain/check"
)

// updateSQL builds a sparse UPDATE for p. $1 is the check id and $2 the owner.
// ok is false when p sets nothing.
func updateSQL(id, owner string, p check.Patch) (sql string, args []any, ok bool) {
	args = []any{id, owner}
	var sets []string
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if p.Name != nil {
		add("name", *p.Name)
	}
	if p.URL != nil {
		add("url", *p.URL)
	}
	if p.OrderIndex != nil {
		add("order_index", *p.OrderIndex)
	}
	if p.Folder != nil {
		add("folder", *p.Folder)
	}
	if p.Disabled != nil {
		add("disabled", *p.Disabled)
	}
	if p.DisabledReason != nil {
		add("disabled_reason", *p.DisabledReason)
	}
	if p.DisabledAt != nil {
		add("disabled_at", nullTime(*p.DisabledAt))
	}
	if p.Status != nil {
		add("status", string(*p.Status))
	}
	if p.LastStatusCode != nil {
		add("last_status_code", *p.LastStatusCode)
	}
	if p.ResponseTimeMs != nil {
		add("response_time_ms", *p.ResponseTimeMs)
	}
	if p.ConsecutiveFailures != nil {
		add("consecutive_failures", *p.ConsecutiveFailures)
	}
	if p.ConsecutiveSuccesses != nil {
		add("consecutive_successes", *p.ConsecutiveSuccesses)
	}
	if p.Interval != nil {
		add("interval_sec", int64(*p.Interval/time.Second))
	}
	if p.Region != nil {
		add("region", *p.Region)
	}
	if p.LastCheckedAt != nil {
		add("last_checked_at", nullTime(*p.LastCheckedAt))
	}
	if p.NextCheckAt != nil {
		add("next_check_at", nullTime(*p.NextCheckAt))
	}
	if len(sets) == 0 {
		return "", nil, false
	}
	if p.UpdatedAt != nil {
		add("updated_at", *p.UpdatedAt)
	} else {
		sets = append(sets, "updated_at = NOW()")
	}

	sql = "UPDATE checks SET " + strings.Join(sets, ", ") + " WHERE id = $1 AND owner_id = $2"
	return sql, args, true
}
