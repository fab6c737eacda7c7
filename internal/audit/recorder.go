package audit

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Recorder persists audit records.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// PGRecorder writes records into audit_records.
type PGRecorder struct {
	pool *pgxpool.Pool
}

// NewPGRecorder returns a new PGRecorder.
func NewPGRecorder(pool *pgxpool.Pool) *PGRecorder {
	return &PGRecorder{pool: pool}
}

// Record persists the audit record.
func (r *PGRecorder) Record(ctx context.Context, rec Record) error {
	if r == nil || r.pool == nil {
		return errors.New("audit: recorder not initialised")
	}
	if rec.EntityType == "" || rec.EntityID == "" || rec.Action == "" {
		return errors.New("audit: record requires entity type, entity id and action")
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO audit_records (op_id, entity_type, entity_id, action, before_data, after_data, user_id, ip, user_agent, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,COALESCE($10, NOW()))`,
		rec.OpID, rec.EntityType, rec.EntityID, rec.Action, rec.Before, rec.After, rec.UserID, rec.IP, rec.UserAgent, rec.At)
	return err
}
