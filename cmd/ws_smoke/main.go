package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"swapit/internal/broadcast"
	"swapit/internal/client"
	"swapit/internal/domain"
	"swapit/internal/logger"
	"swapit/internal/service"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type smokeOptions struct {
	server     string
	players    int
	tiles      int
	placements int
	timeout    time.Duration
	retries    int
	deadline   time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := smokeOptions{}
	cmd := &cobra.Command{
		Use:          "ws_smoke",
		Short:        "Play one Swap It! race against a running server with bot players",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.deadline)
			defer cancel()
			return run(ctx, cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.server, "server", "http://127.0.0.1:8080", "server base URL")
	f.IntVar(&opts.players, "players", 2, "bot players besides the host")
	f.IntVar(&opts.tiles, "tiles", 6, "tile count")
	f.IntVar(&opts.placements, "placements", 2, "placement count")
	f.DurationVar(&opts.timeout, "ack-timeout", 2*time.Second, "wait per move attempt")
	f.IntVar(&opts.retries, "retries", 3, "resends per move")
	f.DurationVar(&opts.deadline, "deadline", time.Minute, "give up after")
	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, opts smokeOptions) error {
	api := client.NewAPI(opts.server)
	connOpts := client.Options{Timeout: opts.timeout, Retries: opts.retries}

	game, hostToken, err := api.CreateGame(ctx, service.CreateRequest{
		PlayerID:    "smoke-host",
		DisplayName: "Smoke host",
		Name:        "smoke",
		Options:     domain.Options{TileCount: opts.tiles, PlacementCount: opts.placements},
	})
	if err != nil {
		return fmt.Errorf("create game: %w", err)
	}
	logger.Info("game created", "game_id", game.ID)

	host, err := client.Dial(ctx, opts.server, hostToken, connOpts)
	if err != nil {
		return fmt.Errorf("dial host: %w", err)
	}
	defer host.Close()

	bots := make([]*client.Conn, 0, opts.players)
	for i := 0; i < opts.players; i++ {
		id := fmt.Sprintf("smoke-bot-%d", i+1)
		_, token, err := api.JoinGame(ctx, game.ID, service.JoinRequest{PlayerID: id})
		if err != nil {
			return fmt.Errorf("join %s: %w", id, err)
		}
		conn, err := client.Dial(ctx, opts.server, token, connOpts)
		if err != nil {
			return fmt.Errorf("dial %s: %w", id, err)
		}
		defer conn.Close()
		bots = append(bots, conn)
	}

	live, err := api.StartGame(ctx, game.ID, hostToken)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}

	// bots stop moving once the host sees the result
	raceCtx, stopRace := context.WithCancel(ctx)
	defer stopRace()

	overCh := make(chan broadcast.GameOver, 1)
	go func() {
		for env := range host.Events() {
			logger.Debug("event", "type", env.Type)
			if over, ok := env.Event.(broadcast.GameOver); ok {
				overCh <- over
				stopRace()
				return
			}
		}
	}()

	g, gctx := errgroup.WithContext(raceCtx)
	for i, bot := range bots {
		g.Go(func() error {
			ack, err := client.Solve(gctx, bot, live.InitialOrder)
			if err != nil {
				// the race may end before this bot finishes
				logger.Info("bot stopped", "bot", i+1, "error", err)
				return nil
			}
			logger.Info("bot finished", "bot", i+1, "moves", ack.MoveCount)
			return nil
		})
	}
	_ = g.Wait()

	select {
	case over := <-overCh:
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "game %s over (%s)\n", game.ID, over.Reason)
		for _, p := range over.Placements {
			fmt.Fprintf(out, "  #%d %s in %d moves\n", p.Rank, p.PlayerID, p.MoveCount)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("no GAME_OVER before deadline: %w", ctx.Err())
	}
}
