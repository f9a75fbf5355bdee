// File: internal/router/correlation.go
// Package router holds the route and correlation state of one bridge unit.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package router

import (
	"fmt"
	"sync"

	"github.com/momentics/wsbridge/api"
)

// CorrelationTable stores pending handshake records keyed by correlation id.
// The control plane deposits a record before the matching reply-direction
// Begin arrives; the stream engine takes it exactly once.
type CorrelationTable struct {
	mu      sync.Mutex
	records map[uint64]api.Correlation
}

var _ api.Correlator = (*CorrelationTable)(nil)

// NewCorrelationTable creates an empty table.
func NewCorrelationTable() *CorrelationTable {
	return &CorrelationTable{records: make(map[uint64]api.Correlation)}
}

// Deposit installs a pending correlation. A duplicate id is refused: a
// correlation may only ever satisfy one Begin.
func (t *CorrelationTable) Deposit(c api.Correlation) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.records[c.CorrelationID]; ok {
		return fmt.Errorf("%w: correlation %d", api.ErrAlreadyExists, c.CorrelationID)
	}
	t.records[c.CorrelationID] = c
	return nil
}

// TakeByCorrelationID removes and returns the record for id. The second take
// of the same id reports absent.
func (t *CorrelationTable) TakeByCorrelationID(id uint64) (api.Correlation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.records[id]
	if ok {
		delete(t.records, id)
	}
	return c, ok
}

// Pending returns the number of undelivered correlations.
func (t *CorrelationTable) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}
