package telemetry

import (
	"log"
	"sync/atomic"
)

// sampledLogger prints every nth message so a misbehaving controller cannot
// flood the log.
type sampledLogger struct {
	every   uint64
	counter atomic.Uint64
}

func newSampledLogger(every int) *sampledLogger {
	if every < 1 {
		every = 1
	}
	return &sampledLogger{every: uint64(every)}
}

func (l *sampledLogger) Printf(format string, args ...any) {
	if l.counter.Add(1)%l.every == 0 {
		log.Printf(format, args...)
	}
}
