package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"mindlink/internal/provider/models"
	id "mindlink/pkg/domain"
	"mindlink/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore keeps both collections in the providers table. Rows with status
// approved form the approved collection ordered by approved_seq; the rest form the
// applications collection ordered by seq.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectColumns = `id, name, description, experience, status, submitted_at, decided_at`

func (s *PostgresStore) Create(ctx context.Context, app *models.Application) error {
	query := `
		INSERT INTO providers (id, name, description, experience, status, submitted_at, decided_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		app.ID.String(),
		app.Name,
		app.Description,
		app.Experience,
		string(app.Status),
		app.SubmittedAt,
		app.DecidedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert provider: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, providerID id.ProviderID) (*models.Application, error) {
	query := `SELECT ` + selectColumns + ` FROM providers WHERE id = $1`
	app, err := scanApplication(s.db.QueryRowContext(ctx, query, providerID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find provider: %w", err)
	}
	return app, nil
}

// Execute locks the row with SELECT ... FOR UPDATE for the validate and mutate steps.
func (s *PostgresStore) Execute(
	ctx context.Context,
	providerID id.ProviderID,
	validate func(*models.Application) error,
	mutate func(*models.Application),
) (*models.Application, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `SELECT ` + selectColumns + ` FROM providers WHERE id = $1 FOR UPDATE`
	app, err := scanApplication(tx.QueryRowContext(ctx, query, providerID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock provider: %w", err)
	}

	if err := validate(app); err != nil {
		return nil, err
	}
	wasApproved := app.IsApproved()
	mutate(app)

	update := `
		UPDATE providers
		SET name = $2, description = $3, experience = $4, status = $5, decided_at = $6,
		    approved_seq = CASE WHEN $7 THEN nextval('providers_approved_seq') ELSE approved_seq END
		WHERE id = $1
	`
	_, err = tx.ExecContext(ctx, update,
		app.ID.String(),
		app.Name,
		app.Description,
		app.Experience,
		string(app.Status),
		app.DecidedAt,
		app.IsApproved() && !wasApproved,
	)
	if err != nil {
		return nil, fmt.Errorf("update provider: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit provider update: %w", err)
	}
	return app, nil
}

func (s *PostgresStore) Delete(ctx context.Context, providerID id.ProviderID) (*models.Application, error) {
	query := `DELETE FROM providers WHERE id = $1 RETURNING ` + selectColumns
	app, err := scanApplication(s.db.QueryRowContext(ctx, query, providerID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("delete provider: %w", err)
	}
	return app, nil
}

func (s *PostgresStore) ListApplications(ctx context.Context) ([]*models.Application, error) {
	query := `SELECT ` + selectColumns + ` FROM providers WHERE status <> 'approved' ORDER BY seq ASC`
	return s.list(ctx, query)
}

func (s *PostgresStore) ListApproved(ctx context.Context) ([]*models.Application, error) {
	query := `SELECT ` + selectColumns + ` FROM providers WHERE status = 'approved' ORDER BY approved_seq ASC`
	return s.list(ctx, query)
}

// CountByStatus reads every status in one statement, so a concurrent approval is
// counted on exactly one side.
func (s *PostgresStore) CountByStatus(ctx context.Context) (models.StatusCounts, error) {
	var counts models.StatusCounts
	rows, err := s.db.QueryContext(ctx, `SELECT status, count(*) FROM providers GROUP BY status`)
	if err != nil {
		return counts, fmt.Errorf("count providers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return counts, fmt.Errorf("scan provider count: %w", err)
		}
		switch models.Status(status) {
		case models.StatusPending:
			counts.Pending += n
		case models.StatusApproved:
			counts.Approved += n
		case models.StatusRejected:
			counts.Rejected += n
		}
	}
	if err := rows.Err(); err != nil {
		return counts, fmt.Errorf("iterate provider counts: %w", err)
	}
	return counts, nil
}

func (s *PostgresStore) list(ctx context.Context, query string) ([]*models.Application, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query providers: %w", err)
	}
	defer rows.Close()

	apps := []*models.Application{}
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate providers: %w", err)
	}
	return apps, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*models.Application, error) {
	var (
		app       models.Application
		rawID     string
		status    string
		decidedAt sql.NullTime
	)
	if err := row.Scan(&rawID, &app.Name, &app.Description, &app.Experience, &status, &app.SubmittedAt, &decidedAt); err != nil {
		return nil, err
	}
	providerID, err := id.ParseProviderID(rawID)
	if err != nil {
		return nil, err
	}
	app.ID = providerID
	app.Status = models.Status(status)
	if decidedAt.Valid {
		t := decidedAt.Time
		app.DecidedAt = &t
	}
	return &app, nil
}
