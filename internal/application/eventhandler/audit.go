// Package eventhandler содержит обработчики доменных событий леджера.
package eventhandler

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/alem-hub/alem-rewards/internal/domain/shared"
	"github.com/alem-hub/alem-rewards/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// AUDIT LOG
// Пишет каждое закоммиченное изменение леджера в структурированный лог.
// События приходят только после успешного коммита, поэтому лог совпадает
// с состоянием хранилища.
// ═══════════════════════════════════════════════════════════════════════════

// AuditLog логирует события леджера и считает их по типам.
type AuditLog struct {
	logger *slog.Logger
	level  slog.Level

	mu     sync.Mutex
	counts map[shared.EventType]int
}

// NewAuditLog создаёт обработчик. level - уровень записей (обычно Info).
func NewAuditLog(l *slog.Logger, level slog.Level) *AuditLog {
	if l == nil {
		l = slog.Default()
	}
	return &AuditLog{
		logger: l.With(logger.Component("audit")),
		level:  level,
		counts: make(map[shared.EventType]int),
	}
}

// Subscribe подписывает обработчик на все события.
func (h *AuditLog) Subscribe(bus shared.EventSubscriber) error {
	return bus.SubscribeAll(h.Handle)
}

// Handle реализует shared.EventHandler.
func (h *AuditLog) Handle(event shared.Event) error {
	h.mu.Lock()
	h.counts[event.EventType()]++
	h.mu.Unlock()

	attrs := []slog.Attr{
		slog.String("event_type", string(event.EventType())),
		slog.String("aggregate_id", event.AggregateID()),
		slog.Time("occurred_at", event.OccurredAt()),
	}
	attrs = append(attrs, payloadAttrs(event.Payload())...)

	h.logger.LogAttrs(context.Background(), h.level, "ledger event", attrs...)
	return nil
}

// Counts возвращает число обработанных событий по типам.
func (h *AuditLog) Counts() map[shared.EventType]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[shared.EventType]int, len(h.counts))
	for k, v := range h.counts {
		out[k] = v
	}
	return out
}

// payloadAttrs превращает payload в атрибуты в стабильном порядке ключей.
// user_id уже есть в aggregate_id и пропускается.
func payloadAttrs(p map[string]interface{}) []slog.Attr {
	keys := make([]string, 0, len(p))
	for k := range p {
		if k == "user_id" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		out = append(out, slog.Any(k, p[k]))
	}
	return out
}
