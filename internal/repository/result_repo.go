package repository

import (
	"context"
	"encoding/json"

	"swapit/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ResultRepository struct {
	db *pgxpool.Pool
}

func NewResultRepository(db *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{db: db}
}

// SaveResults записывает итоги сессии одним батчем. Повторная финализация
// той же сессии ничего не меняет.
func (r *ResultRepository) SaveResults(ctx context.Context, results []*domain.GameResult) error {
	if len(results) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, res := range results {
		detailsJSON, err := json.Marshal(res.Details)
		if err != nil || res.Details == nil {
			detailsJSON = []byte("{}")
		}
		batch.Queue(
			`INSERT INTO game_results
				(game_id, game_name, player_id, display_name, status, placement,
				 move_count, tile_count, end_reason, details, ended_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 ON CONFLICT (game_id, player_id) DO NOTHING`,
			res.GameID,
			res.GameName,
			res.PlayerID,
			res.DisplayName,
			res.Status,
			res.Placement,
			res.MoveCount,
			res.TileCount,
			res.EndReason,
			detailsJSON,
			res.EndedAt,
		)
	}

	return r.db.SendBatch(ctx, batch).Close()
}

// GetByPlayer возвращает последние результаты игрока
func (r *ResultRepository) GetByPlayer(ctx context.Context, playerID string, limit int) ([]*domain.GameResult, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, game_id, game_name, player_id, display_name, status, placement,
				move_count, tile_count, end_reason, details, ended_at, created_at
		 FROM game_results
		 WHERE player_id = $1
		 ORDER BY ended_at DESC
		 LIMIT $2`,
		playerID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []*domain.GameResult{}
	for rows.Next() {
		var res domain.GameResult
		var detailsJSON []byte
		if err := rows.Scan(
			&res.ID, &res.GameID, &res.GameName, &res.PlayerID, &res.DisplayName,
			&res.Status, &res.Placement, &res.MoveCount, &res.TileCount,
			&res.EndReason, &detailsJSON, &res.EndedAt, &res.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(detailsJSON) > 0 {
			_ = json.Unmarshal(detailsJSON, &res.Details)
		}
		result = append(result, &res)
	}

	return result, rows.Err()
}

// Ping проверяет соединение для readiness
func (r *ResultRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
