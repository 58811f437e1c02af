package monitor

import "time"

type Status struct {
	PostgreSQL    bool           `json:"postgresql"`
	Redis         bool           `json:"redis"`
	Buffer        bool           `json:"buffer"`
	BufferSize    int            `json:"buffer_size"`
	BufferPending map[string]int `json:"buffer_pending,omitempty"`
	Subscribers   int            `json:"realtime_subscribers"`
	DroppedEvents uint64         `json:"realtime_dropped"`
	LastCheck     time.Time      `json:"last_check"`
}

// Healthy means the service can serve authenticated reads and writes.
func (s Status) Healthy() bool {
	return s.PostgreSQL && s.Redis
}
