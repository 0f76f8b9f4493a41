package check

import "time"

type Status string

const (
	StatusUnknown Status = "unknown"
	StatusUp      Status = "up"
	StatusDown    Status = "down"
)

type Check struct {
	ID                   string        `json:"id"`
	OwnerID              string        `json:"owner_id"`
	Name                 string        `json:"name"`
	URL                  string        `json:"url"`
	OrderIndex           int64         `json:"order_index"`
	Folder               string        `json:"folder,omitempty"` // normalized path, "" = no folder
	Disabled             bool          `json:"disabled"`
	DisabledReason       string        `json:"disabled_reason,omitempty"`
	DisabledAt           time.Time     `json:"disabled_at"`
	Status               Status        `json:"status"`
	LastStatusCode       int           `json:"last_status_code"`
	ResponseTimeMs       int64         `json:"response_time_ms"`
	ConsecutiveFailures  int           `json:"consecutive_failures"`
	ConsecutiveSuccesses int           `json:"consecutive_successes"`
	Interval             time.Duration `json:"interval"`
	Region               string        `json:"region,omitempty"`
	LastCheckedAt        time.Time     `json:"last_checked_at"`
	NextCheckAt          time.Time     `json:"next_check_at"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// Patch is a sparse update. Nil fields are left untouched; a zero time.Time
// behind a non-nil pointer clears the timestamp.
type Patch struct {
	Name                 *string
	URL                  *string
	OrderIndex           *int64
	Folder               *string
	Disabled             *bool
	DisabledReason       *string
	DisabledAt           *time.Time
	Status               *Status
	LastStatusCode       *int
	ResponseTimeMs       *int64
	ConsecutiveFailures  *int
	ConsecutiveSuccesses *int
	Interval             *time.Duration
	Region               *string
	LastCheckedAt        *time.Time
	NextCheckAt          *time.Time
	UpdatedAt            *time.Time
}

func (p Patch) IsEmpty() bool {
	return p == Patch{}
}

// Apply returns c with every set field of p written over it.
func (p Patch) Apply(c Check) Check {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.URL != nil {
		c.URL = *p.URL
	}
	if p.OrderIndex != nil {
		c.OrderIndex = *p.OrderIndex
	}
	if p.Folder != nil {
		c.Folder = *p.Folder
	}
	if p.Disabled != nil {
		c.Disabled = *p.Disabled
	}
	if p.DisabledReason != nil {
		c.DisabledReason = *p.DisabledReason
	}
	if p.DisabledAt != nil {
		c.DisabledAt = *p.DisabledAt
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.LastStatusCode != nil {
		c.LastStatusCode = *p.LastStatusCode
	}
	if p.ResponseTimeMs != nil {
		c.ResponseTimeMs = *p.ResponseTimeMs
	}
	if p.ConsecutiveFailures != nil {
		c.ConsecutiveFailures = *p.ConsecutiveFailures
	}
	if p.ConsecutiveSuccesses != nil {
		c.ConsecutiveSuccesses = *p.ConsecutiveSuccesses
	}
	if p.Interval != nil {
		c.Interval = *p.Interval
	}
	if p.Region != nil {
		c.Region = *p.Region
	}
	if p.LastCheckedAt != nil {
		c.LastCheckedAt = *p.LastCheckedAt
	}
	if p.NextCheckAt != nil {
		c.NextCheckAt = *p.NextCheckAt
	}
	if p.UpdatedAt != nil {
		c.UpdatedAt = *p.UpdatedAt
	}
	return c
}

// Update addresses one document of a batched write.
type Update struct {
	ID    string
	Patch Patch
}

// Settings is the sparse patch accepted by bulk settings updates.
type Settings struct {
	Interval *time.Duration
	Region   *string
}

func (s Settings) IsEmpty() bool { return s.Interval == nil && s.Region == nil }

// Result is what a probe reports for a manual check.
type Result struct {
	Status    Status
	Code      int
	Latency   time.Duration
	CheckedAt time.Time
}

// Patch folds r into c's status and counter fields.
func (r Result) Patch(c Check) Patch {
	failures, successes := c.ConsecutiveFailures, c.ConsecutiveSuccesses
	if r.Status == StatusUp {
		failures, successes = 0, successes+1
	} else {
		failures, successes = failures+1, 0
	}
	latency := r.Latency.Milliseconds()
	next := r.CheckedAt.Add(c.Interval)
	return Patch{
		Status:               Ptr(r.Status),
		LastStatusCode:       Ptr(r.Code),
		ResponseTimeMs:       &latency,
		ConsecutiveFailures:  &failures,
		ConsecutiveSuccesses: &successes,
		LastCheckedAt:        Ptr(r.CheckedAt),
		NextCheckAt:          &next,
		UpdatedAt:            Ptr(r.CheckedAt),
	}
}

// Stats is the per-owner aggregate derived from a collection.
type Stats struct {
	Total    int
	Disabled int
	Up       int
	Down     int
	Unknown  int
}

func Ptr[T any](v T) *T { return &v }
