package quota

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGSource reads plans from the profiles table.
type PGSource struct {
	pool *pgxpool.Pool
}

func NewPGSource(pool *pgxpool.Pool) *PGSource {
	return &PGSource{pool: pool}
}

func (s *PGSource) Plan(ctx context.Context, userID string) (Plan, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT plan_type, minutes_quota, minutes_used
		FROM profiles WHERE user_id = $1`, userID)
	var p Plan
	err := row.Scan(&p.PlanType, &p.MinutesQuota, &p.MinutesUsed)
	if errors.Is(err, pgx.ErrNoRows) {
		// No profile row means the default free plan with nothing used.
		return Plan{PlanType: "free", MinutesQuota: 600}, nil
	}
	return p, err
}

func (s *PGSource) AddUsage(ctx context.Context, userID string, minutes int) error {
	if minutes <= 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO profiles (user_id, plan_type, minutes_quota, minutes_used)
		VALUES ($1, 'free', 600, $2)
		ON CONFLICT (user_id) DO UPDATE SET minutes_used = profiles.minutes_used + $2`,
		userID, minutes)
	return err
}

var (
	_ Source   = (*PGSource)(nil)
	_ Recorder = (*PGSource)(nil)
)
