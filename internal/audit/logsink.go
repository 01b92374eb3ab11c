package audit

import (
	"fmt"

	"github.com/triage-ai/rbacgate/internal/hostbus"
)

// LogSink formats each Record as one of the four line shapes from
// policy.md §6 and emits it synchronously through a hostbus.Logger. It is
// always available and requires no configuration. A host that uses another
// Sink (such as ClickHouseSink) in its place gets no log lines from this
// one.
type LogSink struct {
	logger hostbus.Logger
}

// NewLogSink wraps logger as a Sink.
func NewLogSink(logger hostbus.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Write(rec Record) {
	switch rec.Kind {
	case KindBlocked:
		s.logger.Warn(fmt.Sprintf(
			`rbac: BLOCKED tool=%q peer=%q channel=%q role=%q reason=%q`,
			rec.Tool, rec.Peer, rec.Channel, rec.Role, rec.Reason))
	case KindAllowed:
		s.logger.Info(fmt.Sprintf(
			`rbac: ALLOWED tool=%q peer=%q channel=%q role=%q`,
			rec.Tool, rec.Peer, rec.Channel, rec.Role))
	case KindGuard:
		s.logger.Info(fmt.Sprintf(
			`rbac: GUARD command=%q peer=%q channel=%q role=%q`,
			rec.Command, rec.Peer, rec.Channel, rec.Role))
	case KindRateLimited:
		s.logger.Warn(fmt.Sprintf(
			`rbac: rate limit exceeded for peer=%q, suppressing logs for 60s`,
			rec.Peer))
	}
}

func (s *LogSink) Close() {}
