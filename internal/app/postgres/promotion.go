package postgres

import (
	"context"
	_ "embed"
	"github.com/beldeveloper/release-promoter/internal/app"
	"github.com/beldeveloper/release-promoter/internal/app/errtype"
	"github.com/beldeveloper/release-promoter/internal/app/pipeline"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"
)

//go:embed schema.sql
var schema string

const promotionColumns = `"deployment_id", "service_name", "version", "environment", "commit_sha", "author",
	"is_hotfix", "requires_migration", "test_coverage", "canary_error_rate", "canary_latency_p99",
	"approval_count", "max_retries", "retry_count", "rollout_percentage", "previous_version", "started_at",
	"state", "history", "created_at", "updated_at"`

// NewPromotion creates a new instance of the repository.
func NewPromotion(conn *pgxpool.Pool) app.PromotionRepo {
	return Promotion{conn: conn}
}

// EnsureSchema creates the promotions table if it is missing.
func EnsureSchema(ctx context.Context, conn *pgxpool.Pool) error {
	_, err := conn.Exec(ctx, schema)
	return errors.Wrap(err, "postgres.EnsureSchema.Exec")
}

// Promotion implements a repository.
type Promotion struct {
	conn *pgxpool.Pool
}

// FindAll returns all promotions, the most recent first.
func (r Promotion) FindAll(ctx context.Context) ([]app.Promotion, error) {
	q := `SELECT ` + promotionColumns + ` FROM "promotions" ORDER BY "created_at" DESC`
	rows, err := r.conn.Query(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "postgres.Promotion.FindAll.Query")
	}
	defer rows.Close()
	res, err := scanPromotions(rows)
	return res, errors.Wrap(err, "postgres.Promotion.FindAll.Scan")
}

// FindActive returns the promotions that have not reached a terminal state, the oldest first.
func (r Promotion) FindActive(ctx context.Context) ([]app.Promotion, error) {
	terminal := pipeline.TerminalStates()
	states := make([]string, len(terminal))
	for i, s := range terminal {
		states[i] = string(s)
	}
	q := `SELECT ` + promotionColumns + ` FROM "promotions"
		WHERE NOT ("state" = ANY($1)) ORDER BY "created_at"`
	rows, err := r.conn.Query(ctx, q, states)
	if err != nil {
		return nil, errors.Wrap(err, "postgres.Promotion.FindActive.Query")
	}
	defer rows.Close()
	res, err := scanPromotions(rows)
	return res, errors.Wrap(err, "postgres.Promotion.FindActive.Scan")
}

// FindByID returns the one promotion with the specific deployment ID.
func (r Promotion) FindByID(ctx context.Context, id string) (app.Promotion, error) {
	q := `SELECT ` + promotionColumns + ` FROM "promotions" WHERE "deployment_id" = $1`
	p, err := scanPromotion(r.conn.QueryRow(ctx, q, id))
	if err == pgx.ErrNoRows {
		err = errtype.ErrNotFound
	}
	return p, errors.Wrapf(err, "postgres.Promotion.FindByID.Scan: promotion=%v", id)
}

// Add saves a new promotion.
func (r Promotion) Add(ctx context.Context, p app.Promotion) (app.Promotion, error) {
	q := `INSERT INTO "promotions" (` + promotionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`
	_, err := r.conn.Exec(ctx, q, promotionArgs(p)...)
	return p, errors.Wrapf(err, "postgres.Promotion.Add.Exec: promotion=%v", p.DeploymentID)
}

// Update stores the mutable part of the promotion.
func (r Promotion) Update(ctx context.Context, p app.Promotion) (app.Promotion, error) {
	q := `UPDATE "promotions" SET "canary_error_rate" = $2, "canary_latency_p99" = $3, "approval_count" = $4,
		"retry_count" = $5, "rollout_percentage" = $6, "started_at" = $7, "state" = $8, "history" = $9,
		"updated_at" = $10
		WHERE "deployment_id" = $1`
	tag, err := r.conn.Exec(ctx, q, p.DeploymentID, p.CanaryErrorRate, p.CanaryLatencyP99, p.ApprovalCount,
		p.RetryCount, p.RolloutPercentage, p.StartedAt, string(p.State), history(p), p.UpdatedAt)
	if err == nil && tag.RowsAffected() == 0 {
		err = errtype.ErrNotFound
	}
	return p, errors.Wrapf(err, "postgres.Promotion.Update.Exec: promotion=%v", p.DeploymentID)
}

func promotionArgs(p app.Promotion) []interface{} {
	return []interface{}{
		p.DeploymentID, p.ServiceName, p.Version, string(p.Environment), p.CommitSHA, p.Author,
		p.IsHotfix, p.RequiresMigration, p.TestCoverage, p.CanaryErrorRate, p.CanaryLatencyP99,
		p.ApprovalCount, p.MaxRetries, p.RetryCount, p.RolloutPercentage, p.PreviousVersion, p.StartedAt,
		string(p.State), history(p), p.CreatedAt, p.UpdatedAt,
	}
}

// history never stores NULL for an empty trail.
func history(p app.Promotion) []pipeline.Transition {
	if p.History == nil {
		return []pipeline.Transition{}
	}
	return p.History
}

func scanPromotions(rows pgx.Rows) ([]app.Promotion, error) {
	res := make([]app.Promotion, 0)
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func scanPromotion(row pgx.Row) (app.Promotion, error) {
	var (
		p     app.Promotion
		env   string
		state string
	)
	err := row.Scan(
		&p.DeploymentID, &p.ServiceName, &p.Version, &env, &p.CommitSHA, &p.Author,
		&p.IsHotfix, &p.RequiresMigration, &p.TestCoverage, &p.CanaryErrorRate, &p.CanaryLatencyP99,
		&p.ApprovalCount, &p.MaxRetries, &p.RetryCount, &p.RolloutPercentage, &p.PreviousVersion, &p.StartedAt,
		&state, &p.History, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return p, err
	}
	p.Environment = pipeline.Environment(env)
	p.State, err = pipeline.ParseState(state)
	return p, err
}
