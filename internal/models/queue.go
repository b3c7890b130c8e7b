package models

// QueueDescriptor is a point-in-time snapshot of one queue's runtime counters.
// It is refreshed on every inventory query and has no identity beyond
// name + environment.
type QueueDescriptor struct {
	Name          string
	HasListener   bool
	CurrentCount  int64
	ConsumerCount int
}
