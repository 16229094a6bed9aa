package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"swapit/internal/domain"
	"swapit/internal/migrations"
	"swapit/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultRepository_SaveAndQuery(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer db.Close()

	_, err = migrations.Apply(ctx, db)
	require.NoError(t, err)
	repo := repository.NewResultRepository(db)
	require.NoError(t, repo.Ping(ctx))

	gameID := "it-" + uuid.NewString()
	player := "p-" + uuid.NewString()
	first := 1
	ended := time.Now().UTC().Truncate(time.Millisecond)
	rows := []*domain.GameResult{
		{
			GameID: gameID, GameName: "integration", PlayerID: player, DisplayName: "P",
			Status: domain.ResultFinished, Placement: &first, MoveCount: 7, TileCount: 6,
			EndReason: domain.EndCompleted, Details: map[string]interface{}{"positions_correct": 6},
			EndedAt: ended,
		},
		{
			GameID: gameID, GameName: "integration", PlayerID: "other-" + player,
			Status: domain.ResultDNF, MoveCount: 3, TileCount: 6,
			EndReason: domain.EndCompleted, EndedAt: ended,
		},
	}

	require.NoError(t, repo.SaveResults(ctx, rows))
	// a second finalization of the same session is ignored
	require.NoError(t, repo.SaveResults(ctx, rows))

	got, err := repo.GetByPlayer(ctx, player, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, gameID, got[0].GameID)
	assert.Equal(t, domain.ResultFinished, got[0].Status)
	require.NotNil(t, got[0].Placement)
	assert.Equal(t, 1, *got[0].Placement)
	assert.Equal(t, 7, got[0].MoveCount)
	assert.EqualValues(t, 6, got[0].Details["positions_correct"])
	assert.WithinDuration(t, ended, got[0].EndedAt, time.Second)

	none, err := repo.GetByPlayer(ctx, "nobody-"+player, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}
