package result

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/csa-client/pkg/gamedto"
)

// Repository upserts finished games into Postgres.
type Repository struct {
	db *sql.DB
}

const schema = `CREATE TABLE IF NOT EXISTS csa_games (
	game_id         TEXT PRIMARY KEY,
	session_id      TEXT NOT NULL,
	black_name      TEXT NOT NULL,
	white_name      TEXT NOT NULL,
	player_color    TEXT NOT NULL,
	outcome         TEXT NOT NULL,
	labels          TEXT NOT NULL,
	special         TEXT NOT NULL,
	moves           JSONB NOT NULL,
	black_remaining INTEGER NOT NULL,
	white_remaining INTEGER NOT NULL,
	started_at      TIMESTAMPTZ NOT NULL,
	ended_at        TIMESTAMPTZ NOT NULL,
	duration_ms     BIGINT NOT NULL
)`

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("database url is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create csa_games: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) Name() string { return "postgres" }

const upsertGame = `INSERT INTO csa_games (
	game_id, session_id, black_name, white_name, player_color,
	outcome, labels, special, moves,
	black_remaining, white_remaining, started_at, ended_at, duration_ms
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
) ON CONFLICT (game_id) DO UPDATE SET
	session_id=EXCLUDED.session_id,
	black_name=EXCLUDED.black_name,
	white_name=EXCLUDED.white_name,
	player_color=EXCLUDED.player_color,
	outcome=EXCLUDED.outcome,
	labels=EXCLUDED.labels,
	special=EXCLUDED.special,
	moves=EXCLUDED.moves,
	black_remaining=EXCLUDED.black_remaining,
	white_remaining=EXCLUDED.white_remaining,
	started_at=EXCLUDED.started_at,
	ended_at=EXCLUDED.ended_at,
	duration_ms=EXCLUDED.duration_ms`

// Save upserts g keyed by its game id.
func (r *Repository) Save(ctx context.Context, g Game) error {
	if r == nil || r.db == nil {
		return nil
	}
	dto := g.DTO()
	movesRaw, err := json.Marshal(dto.Moves)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, upsertGame, upsertArgs(dto, string(movesRaw))...)
	return err
}

func upsertArgs(g gamedto.FinishedGame, moves string) []any {
	return []any{
		g.GameID, g.SessionID, g.Black, g.White, g.Color,
		g.Outcome, strings.Join(g.Labels, " "), g.Special, moves,
		g.BlackRemaining, g.WhiteRemaining, g.StartedAt.UTC(), g.EndedAt.UTC(), g.DurationMS,
	}
}
