package coordinator

import "time"

// Config sizes the coordinator's internals.
type Config struct {
	// MailboxSize buffers the dispatch/send/read mailbox. Default: 16.
	MailboxSize int
	// SealGrace is the registration window between the end of a dispatch's
	// synchronous phase and the sealing of its completion scope. Tasks that
	// register nested work must do so within this window. Zero seals
	// immediately, which is what test harnesses should use for determinism;
	// production callers that rely on nested registration typically pass
	// SuggestedSealGrace.
	SealGrace time.Duration
	// SubscriberBuffer is the per-subscriber commit buffer. Commits arriving
	// while a subscriber's buffer is full are dropped for that subscriber.
	// Default: 16.
	SubscriberBuffer int
	// NotifyWorkers is the number of partitioned notifier workers fanning
	// commits out to subscribers. Default: 1.
	NotifyWorkers int
}

// SuggestedSealGrace leaves room for tasks spawned during the synchronous
// phase to register their own nested work before the scope seals.
const SuggestedSealGrace = 5 * time.Millisecond

const (
	defaultMailboxSize      = 16
	defaultSubscriberBuffer = 16
	defaultNotifyWorkers    = 1
)

func (c Config) normalized() Config {
	if c.MailboxSize <= 0 {
		c.MailboxSize = defaultMailboxSize
	}
	if c.SubscriberBuffer <= 0 {
		c.SubscriberBuffer = defaultSubscriberBuffer
	}
	if c.NotifyWorkers <= 0 {
		c.NotifyWorkers = defaultNotifyWorkers
	}
	return c
}
