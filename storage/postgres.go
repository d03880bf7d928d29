package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yanghwi/daily-dungeon/domain"
)

const uniqueViolation = "23505"

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresRepo(ctx context.Context, connString string) (*PostgresRepo, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	return &PostgresRepo{pool: pool}, nil
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}

func wrap(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
}

func (r *PostgresRepo) GetAccountByUsername(ctx context.Context, username string) (domain.User, error) {
	user := domain.User{Username: username}

	row := r.pool.QueryRow(ctx, "SELECT id, password_hash FROM accounts WHERE username = $1", username)
	if err := row.Scan(&user.Id, &user.PasswordHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, wrap(err)
	}

	return user, nil
}

func (r *PostgresRepo) GetAccountById(ctx context.Context, id string) (domain.User, error) {
	user := domain.User{Id: id}

	row := r.pool.QueryRow(ctx, "SELECT username, password_hash FROM accounts WHERE id = $1", id)
	if err := row.Scan(&user.Username, &user.PasswordHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, wrap(err)
	}

	return user, nil
}

func (r *PostgresRepo) CreateAccount(ctx context.Context, username string, passwordHash string) (string, error) {
	row := r.pool.QueryRow(ctx, "INSERT INTO accounts(username, password_hash) VALUES($1, $2) RETURNING id", username, passwordHash)

	var id string
	if err := row.Scan(&id); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", domain.ErrDuplicateUsername
		}
		return "", wrap(err)
	}

	return id, nil
}

// SaveRun stores a finished run with one row per participant that has an
// account. Runs without any such participant are not stored.
func (r *PostgresRepo) SaveRun(ctx context.Context, run domain.RunRecord) error {
	participants := make([]domain.RunParticipant, 0, len(run.Participants))
	for _, p := range run.Participants {
		if p.AccountId != "" {
			participants = append(participants, p)
		}
	}
	if len(participants) == 0 {
		return nil
	}

	if run.Id == "" {
		run.Id = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	highlights := run.Highlights
	if highlights == nil {
		highlights = []string{}
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO runs(id, room_code, result, waves_cleared, highlights, created_at)
			 VALUES($1, $2, $3, $4, $5, $6)`,
			run.Id, run.RoomCode, string(run.Result), run.WavesCleared, highlights, run.CreatedAt)
		if err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, p := range participants {
			batch.Queue(
				`INSERT INTO run_participants(run_id, account_id, character_name, background, survived, damage_taken)
				 VALUES($1, $2, $3, $4, $5, $6)`,
				run.Id, p.AccountId, p.CharacterName, p.Background, p.Survived, p.DamageTaken)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return wrap(err)
	}
	return nil
}

// ListRuns returns the most recent runs the account took part in, newest
// first, each with its full participant list.
func (r *PostgresRepo) ListRuns(ctx context.Context, accountID string, limit int) ([]domain.RunRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT r.id, r.room_code, r.result, r.waves_cleared, r.highlights, r.created_at
		 FROM runs r
		 JOIN run_participants p ON p.run_id = r.id
		 WHERE p.account_id = $1
		 ORDER BY r.created_at DESC
		 LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, wrap(err)
	}

	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.RunRecord, error) {
		var run domain.RunRecord
		var result string
		err := row.Scan(&run.Id, &run.RoomCode, &result, &run.WavesCleared, &run.Highlights, &run.CreatedAt)
		run.Result = domain.RunResult(result)
		return run, err
	})
	if err != nil {
		return nil, wrap(err)
	}
	if len(runs) == 0 {
		return []domain.RunRecord{}, nil
	}

	ids := make([]string, len(runs))
	index := make(map[string]int, len(runs))
	for i, run := range runs {
		ids[i] = run.Id
		index[run.Id] = i
	}

	rows, err = r.pool.Query(ctx,
		`SELECT run_id, account_id, character_name, background, survived, damage_taken
		 FROM run_participants
		 WHERE run_id = ANY($1)
		 ORDER BY character_name`, ids)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()

	for rows.Next() {
		var runID string
		var p domain.RunParticipant
		if err := rows.Scan(&runID, &p.AccountId, &p.CharacterName, &p.Background, &p.Survived, &p.DamageTaken); err != nil {
			return nil, wrap(err)
		}
		i := index[runID]
		runs[i].Participants = append(runs[i].Participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(err)
	}

	return runs, nil
}
