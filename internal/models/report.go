package models

// QueueReport is an assembled diagnostic view of one queue. It is built from
// several independent broker queries and is therefore a best-effort snapshot,
// not a consistent cut: the queue may change between sub-queries.
//
// First and Last are nil when the queue had no messages at query time, so
// callers can tell "no messages" apart from zero-valued metadata.
type QueueReport struct {
	Queue         QueueDescriptor
	ReceivedCount int64
	First         *MessageDescriptor
	Last          *MessageDescriptor
}
