// Package store provides the DedupRepo interface for inbound message deduplication.
package store

import (
	"sync"
	"time"
)

// DedupRecord represents an inbound message deduplication record.
type DedupRecord struct {
	MessageID   string     `json:"message_id"`
	Sender      string     `json:"sender"`
	ReceivedAt  time.Time  `json:"received_at"`
	ProcessedAt *time.Time `json:"processed_at"`
}

// DedupRepo defines the interface for inbound message deduplication.
// Webhook transports redeliver messages they consider unacknowledged; recording the
// message id before processing turns a redelivery into a no-op.
type DedupRepo interface {
	// IsDuplicate checks if a message ID has already been recorded.
	IsDuplicate(messageID string) (bool, error)

	// RecordInbound inserts a new inbound message record. Returns false if the
	// message was already recorded (duplicate).
	RecordInbound(messageID, sender string) (bool, error)

	// MarkProcessed sets the processed_at timestamp for a message.
	MarkProcessed(messageID string) error
}

// MemoryDedup is an in-process DedupRepo. Records older than the retention window are
// pruned on insert.
type MemoryDedup struct {
	mu        sync.Mutex
	records   map[string]*DedupRecord
	retention time.Duration
	now       func() time.Time
}

// Compile-time check that MemoryDedup implements DedupRepo.
var _ DedupRepo = (*MemoryDedup)(nil)

// NewMemoryDedup creates a MemoryDedup keeping ids for retention (24h when zero).
func NewMemoryDedup(retention time.Duration) *MemoryDedup {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &MemoryDedup{records: make(map[string]*DedupRecord), retention: retention, now: time.Now}
}

func (d *MemoryDedup) IsDuplicate(messageID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.records[messageID]
	return ok, nil
}

func (d *MemoryDedup) RecordInbound(messageID, sender string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	for id, r := range d.records {
		if now.Sub(r.ReceivedAt) > d.retention {
			delete(d.records, id)
		}
	}
	if _, ok := d.records[messageID]; ok {
		return false, nil
	}
	d.records[messageID] = &DedupRecord{MessageID: messageID, Sender: sender, ReceivedAt: now}
	return true, nil
}

func (d *MemoryDedup) MarkProcessed(messageID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.records[messageID]; ok {
		t := d.now()
		r.ProcessedAt = &t
	}
	return nil
}
