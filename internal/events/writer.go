package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// Append records an operation event inside the caller's transaction so the
// log row commits or rolls back together with the state mutation.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType string, skillID uint64, actorID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,skill_id,actor_id,payload_json) VALUES (?,?,?,?,?)`,
		ts, evtType, nullableSkill(skillID), actorID, string(data))
	return err
}

func nullableSkill(id uint64) any {
	if id == 0 {
		return nil
	}
	return int64(id)
}
