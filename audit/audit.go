// Package audit provides the audit log sinks handlers report correlation
// changes to. Sinks never fail their caller: delivery problems are logged and
// dropped.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ruteri/metadata-governance-backend/interfaces"
)

// SlogAuditLog writes audit records to a structured logger.
type SlogAuditLog struct {
	log *slog.Logger
}

// NewSlogAuditLog creates an audit sink writing to log.
func NewSlogAuditLog(log *slog.Logger) *SlogAuditLog {
	if log == nil {
		log = slog.Default()
	}
	return &SlogAuditLog{log: log.With("component", "audit")}
}

// LogRecord emits the record at info level.
func (a *SlogAuditLog) LogRecord(ctx context.Context, record interfaces.AuditRecord) {
	attrs := []any{
		slog.String("userId", record.UserID),
		slog.String("action", string(record.Action)),
		slog.String("operation", record.Operation),
		slog.String("typeName", record.TypeName),
		slog.String("guid", record.GUID),
	}
	for k, v := range record.AdditionalIDs {
		attrs = append(attrs, slog.String(k, v))
	}
	a.log.InfoContext(ctx, record.Message, attrs...)
}

// StreamClient is the part of the Redis client the stream sink uses.
type StreamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisStreamAuditLog appends audit records to a Redis stream.
type RedisStreamAuditLog struct {
	client StreamClient
	stream string
	maxLen int64
	log    *slog.Logger
}

// NewRedisStreamAuditLog connects to the Redis server at addr and appends to
// stream. The stream is trimmed to roughly maxLen entries when maxLen > 0.
func NewRedisStreamAuditLog(addr, stream string, maxLen int64, log *slog.Logger) *RedisStreamAuditLog {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return NewRedisStreamAuditLogWithClient(client, stream, maxLen, log)
}

// NewRedisStreamAuditLogWithClient wraps an existing client.
func NewRedisStreamAuditLogWithClient(client StreamClient, stream string, maxLen int64, log *slog.Logger) *RedisStreamAuditLog {
	if log == nil {
		log = slog.Default()
	}
	return &RedisStreamAuditLog{
		client: client,
		stream: stream,
		maxLen: maxLen,
		log:    log,
	}
}

// LogRecord appends the record as one stream entry. The record is stored
// under the "record" field as JSON.
func (a *RedisStreamAuditLog) LogRecord(ctx context.Context, record interfaces.AuditRecord) {
	if record.Time.IsZero() {
		record.Time = time.Now().UTC()
	}
	data, err := json.Marshal(record)
	if err != nil {
		a.log.Error("Failed to encode audit record", "err", err)
		return
	}

	args := &redis.XAddArgs{
		Stream: a.stream,
		Values: map[string]any{
			"action": string(record.Action),
			"guid":   record.GUID,
			"record": string(data),
		},
	}
	if a.maxLen > 0 {
		args.MaxLen = a.maxLen
		args.Approx = true
	}

	if err := a.client.XAdd(ctx, args).Err(); err != nil {
		a.log.Warn("Failed to append audit record",
			"err", err,
			slog.String("stream", a.stream),
			slog.String("guid", record.GUID))
	}
}

// MultiAuditLog fans every record out to several sinks.
type MultiAuditLog struct {
	sinks []interfaces.AuditLog
}

// NewMultiAuditLog creates a sink forwarding to every non-nil sink.
func NewMultiAuditLog(sinks ...interfaces.AuditLog) *MultiAuditLog {
	out := make([]interfaces.AuditLog, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &MultiAuditLog{sinks: out}
}

// LogRecord forwards the record to every sink.
func (m *MultiAuditLog) LogRecord(ctx context.Context, record interfaces.AuditRecord) {
	if record.Time.IsZero() {
		record.Time = time.Now().UTC()
	}
	for _, s := range m.sinks {
		s.LogRecord(ctx, record)
	}
}
