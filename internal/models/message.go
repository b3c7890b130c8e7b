package models

import "time"

// MessageDescriptor holds message metadata fetched for reporting or a
// mutation pre-check. It never carries the payload and is never persisted.
type MessageDescriptor struct {
	ID            string
	Size          int64
	Timestamp     time.Time
	DeliveryCount int
	Type          string
	Headers       map[string]string
}
