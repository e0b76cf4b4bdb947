package sqlite

import (
	"context"
	"fmt"

	"mt5Assistant/internal/domain"
	"mt5Assistant/internal/ports"
)

// --- RiskEventStore Implementation ---

// RecordRiskEvent appends event to the audit log.
func (r *Repository) RecordRiskEvent(ctx context.Context, event domain.RiskEvent) error {
	const query = `
	INSERT INTO risk_events (event_id, timestamp, event_type, details)
	VALUES (:event_id, :timestamp, :event_type, :details)`
	event.Time = event.Time.UTC()
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("failed to record risk event %s: %w: %w", event.Type, ports.ErrStorageFailure, err)
	}
	r.logger.Debug(ctx, "Risk event recorded", map[string]interface{}{"eventID": event.ID, "type": event.Type})
	return nil
}

// RecentRiskEvents returns up to limit events, newest first.
func (r *Repository) RecentRiskEvents(ctx context.Context, limit int) ([]domain.RiskEvent, error) {
	const query = `
	SELECT event_id, timestamp, event_type, details
	FROM risk_events ORDER BY timestamp DESC, id DESC LIMIT ?`
	events := make([]domain.RiskEvent, 0)
	if err := r.db.SelectContext(ctx, &events, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query risk events: %w: %w", ports.ErrStorageFailure, err)
	}
	return events, nil
}
