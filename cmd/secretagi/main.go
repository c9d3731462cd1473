// Command secretagi runs Secret AGI simulations against the SQLite store.
//
// Subcommands:
//
//	run      simulate one or more games to completion (default)
//	recover  reconcile interrupted games and report their restored turns
//	resume   load a game at its latest turn and simulate onward
//
// Environment variables prefixed SECRET_AGI_ override flags' defaults.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/alignmentgames/secretagi/internal/engine"
	"github.com/alignmentgames/secretagi/internal/game"
	"github.com/alignmentgames/secretagi/internal/platform/config"
	"github.com/alignmentgames/secretagi/internal/platform/otel"
	"github.com/alignmentgames/secretagi/internal/storage/sqlite"
)

// env is the CLI configuration, populated from SECRET_AGI_* variables.
type env struct {
	DBPath      string `env:"SECRET_AGI_DB_PATH" envDefault:"secretagi.sqlite"`
	Games       int    `env:"SECRET_AGI_GAMES" envDefault:"1"`
	Players     int    `env:"SECRET_AGI_PLAYERS" envDefault:"5"`
	Seed        int64  `env:"SECRET_AGI_SEED" envDefault:"0"`
	TurnCap     int    `env:"SECRET_AGI_TURN_CAP" envDefault:"1000"`
	Parallelism int    `env:"SECRET_AGI_PARALLELISM" envDefault:"2"`
}

func main() {
	_ = godotenv.Load()

	var cfg env
	if err := config.ParseEnv(&cfg); err != nil {
		config.Exitf("invalid configuration: %v", err)
	}

	dbPath := flag.String("db", cfg.DBPath, "sqlite database path")
	games := flag.Int("games", cfg.Games, "number of games to simulate")
	players := flag.Int("players", cfg.Players, "players per game (5-10)")
	seed := flag.Int64("seed", cfg.Seed, "base seed; 0 means random")
	turnCap := flag.Int("turn-cap", cfg.TurnCap, "maximum accepted actions per game")
	parallelism := flag.Int("parallelism", cfg.Parallelism, "concurrent game workers")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := otel.Setup(ctx, "secretagi")
	if err != nil {
		config.Exitf("otel setup: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Printf("otel shutdown: %v", err)
		}
	}()

	command := "run"
	if args := flag.Args(); len(args) > 0 {
		command = args[0]
	}

	switch command {
	case "run":
		err = runGames(ctx, *dbPath, *games, *players, *seed, *turnCap, *parallelism)
	case "recover":
		err = recoverGames(ctx, *dbPath, *turnCap)
	case "resume":
		if flag.NArg() < 2 {
			config.Exitf("usage: secretagi resume <game-id>")
		}
		err = resumeGame(ctx, *dbPath, flag.Arg(1), *turnCap)
	default:
		config.Exitf("unknown command %q", command)
	}
	if err != nil {
		config.Exitf("%s: %v", command, err)
	}
}

// runGames simulates games in parallel workers. Each game gets its own
// engine; only the store is shared.
func runGames(ctx context.Context, dbPath string, games, players int, seed int64, turnCap, parallelism int) error {
	store, err := sqlite.Open(dbPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(parallelism)

	for i := 0; i < games; i++ {
		index := i
		group.Go(func() error {
			cfg := game.Config{PlayerCount: players}
			for p := 0; p < players; p++ {
				cfg.PlayerIDs = append(cfg.PlayerIDs, fmt.Sprintf("player-%d", p+1))
			}
			policySeed := seed + int64(index)
			if seed != 0 {
				gameSeed := seed + int64(index)
				cfg.Seed = &gameSeed
			}

			eng := engine.New(store)
			gameID, err := eng.CreateGame(ctx, cfg)
			if err != nil {
				return fmt.Errorf("create game %d: %w", index, err)
			}

			summary, err := eng.SimulateToCompletion(ctx, engine.NewRandomPolicy(policySeed), turnCap)
			if err != nil {
				return fmt.Errorf("simulate game %s: %w", gameID, err)
			}
			log.Printf("game %s finished: completed=%t winners=%v turns=%d capability=%d safety=%d",
				summary.GameID, summary.Completed, summary.Winners, summary.Turns,
				summary.FinalCapability, summary.FinalSafety)
			return nil
		})
	}

	return group.Wait()
}

// recoverGames reconciles every interrupted game in the store.
func recoverGames(ctx context.Context, dbPath string, turnCap int) error {
	store, err := sqlite.Open(dbPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	eng := engine.New(store)
	interrupted, err := eng.FindInterrupted(ctx)
	if err != nil {
		return err
	}
	if len(interrupted) == 0 {
		log.Print("no interrupted games found")
		return nil
	}

	for _, gameID := range interrupted {
		result, err := eng.Recover(ctx, gameID)
		if err != nil {
			return fmt.Errorf("recover %s: %w", gameID, err)
		}
		log.Printf("recovered game %s: failure=%s turn=%d reconciled=%d",
			gameID, result.Analysis.Type, result.Analysis.LastValidTurn, result.PendingFailed)
	}
	return nil
}

// resumeGame loads a game at its latest snapshot and simulates onward.
func resumeGame(ctx context.Context, dbPath, gameID string, turnCap int) error {
	store, err := sqlite.Open(dbPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	eng := engine.New(store)
	if err := eng.LoadGame(ctx, gameID, nil); err != nil {
		return err
	}

	summary, err := eng.SimulateToCompletion(ctx, engine.NewRandomPolicy(0), turnCap)
	if err != nil {
		return err
	}
	log.Printf("game %s resumed: completed=%t winners=%v turns=%d",
		summary.GameID, summary.Completed, summary.Winners, summary.Turns)
	return nil
}
