// Package main is the entry point for the derby companion bot.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"derby-bot/internal/bot"
	"derby-bot/internal/broadcast"
	"derby-bot/internal/config"
	"derby-bot/internal/game"
	"derby-bot/internal/game/coin"
	"derby-bot/internal/game/duel"
	"derby-bot/internal/game/phrase"
	"derby-bot/internal/game/word"
	"derby-bot/internal/handler"
	"derby-bot/internal/pkg/cache"
	"derby-bot/internal/pkg/db"
	"derby-bot/internal/pkg/lock"
	"derby-bot/internal/pkg/tz"
	"derby-bot/internal/repository"
	"derby-bot/internal/schedule"
	"derby-bot/internal/service"
)

// leaderboardDepth is how many rows per chat are copied into Redis at startup.
const leaderboardDepth = 100

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil && cfg.Log.Level != "" {
		zerolog.SetGlobalLevel(level)
	}
	log.Info().Msg("Configuration loaded successfully")

	loc, err := tz.Load(cfg.Schedule.Timezone)
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.Schedule.Timezone).Msg("Failed to load timezone")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := db.Migrate(ctx, dbPool.Pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	subscriberRepo := repository.NewSubscriberRepository(dbPool.Pool)
	settingsRepo := repository.NewSettingsRepository(dbPool.Pool)
	participantRepo := repository.NewParticipantRepository(dbPool.Pool)
	playerRepo := repository.NewPlayerRepository(dbPool.Pool)
	statsRepo := repository.NewStatsRepository(dbPool.Pool)
	wordRepo := repository.NewWordRepository(dbPool.Pool)

	seedWords(ctx, wordRepo, cfg.Games.Word.WordsFile)

	// Optional Redis leaderboard
	var leaderboard service.Leaderboard
	if cfg.Redis.Enabled() {
		redisClient, err := cache.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, /top will read PostgreSQL")
		} else {
			defer redisClient.Close()
			leaderboard = redisClient
		}
	}
	statsService := service.NewStatsService(statsRepo, leaderboard)
	if err := statsService.WarmLeaderboard(ctx, leaderboardDepth); err != nil {
		log.Warn().Err(err).Msg("Failed to warm Redis leaderboard")
	}

	// Transport
	teleBot, err := bot.NewTeleBot(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}
	transport := handler.NewTransport(teleBot)
	gateway := broadcast.NewGateway(subscriberRepo, participantRepo, transport)

	// Scheduling
	clock := clockwork.NewRealClock()
	scheduler := schedule.New(clock)
	defer scheduler.Stop()

	subscriptionService := service.NewSubscriptionService(subscriberRepo)
	rosterService := service.NewRosterService(participantRepo, gateway)
	playerService := service.NewPlayerService(playerRepo)
	derbyService := service.NewDerbyService(settingsRepo, scheduler, gateway, loc, clock)

	notifierCfg, err := notifierConfig(&cfg.Schedule, loc)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid schedule configuration")
	}
	notifier := service.NewNotifier(notifierCfg, scheduler, gateway, playerService)
	notifier.Start()

	if err := derbyService.Load(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to restore derby start")
	}

	// Games
	overrides := game.NewOverrides(cfg.Games.ForcedOutcomes)
	duels := duel.NewManager(duel.Config{
		BaseHitChance: cfg.Games.Duel.BaseHitChance,
		AimBonus:      cfg.Games.Duel.AimBonus,
		MuteDuration:  cfg.Games.Duel.MuteDuration,
		ChallengeTTL:  cfg.Games.Duel.ChallengeTTL,
	}, statsService, transport, game.DefaultRand, overrides, clock)
	coins := coin.NewManager(coin.Config{
		MuteDuration: cfg.Games.Coin.MuteDuration,
		ChallengeTTL: cfg.Games.Coin.ChallengeTTL,
	}, statsService, transport, game.DefaultRand, overrides, clock)
	words := word.NewManager(word.Config{
		RoundDuration: cfg.Games.Word.RoundDuration,
		PointsPerTier: cfg.Games.Word.PointsPerTier,
	}, wordRepo, transport, transport, statsService, clock, lock.NewKeyLock())
	phrases := phrase.NewResponder(phrase.DefaultRules, game.DefaultRand)

	// Registration order is the intent priority.
	registry := game.NewRegistry()
	for _, g := range []game.TextGame{words, duels, coins, phrases} {
		if err := registry.Register(g); err != nil {
			log.Fatal().Err(err).Str("game", g.Name()).Msg("Failed to register game")
		}
	}
	log.Info().
		Int("game_count", registry.Count()).
		Strs("games", registry.Names()).
		Msg("Games registered")

	timeout := cfg.Database.QueryTimeout
	telegramBot := bot.New(teleBot, &bot.Dependencies{
		Config:        cfg,
		DerbyHandler:  handler.NewDerbyHandler(derbyService, subscriptionService, notifier, loc, clock, timeout),
		RosterHandler: handler.NewRosterHandler(rosterService, timeout),
		PlayerHandler: handler.NewPlayerHandler(playerService, timeout),
		GameHandler:   handler.NewGameHandler(duels, coins, registry, statsService, timeout),
		WordHandler:   handler.NewWordHandler(words, wordRepo, timeout),
		StatsHandler:  handler.NewStatsHandler(statsService, timeout),
	})

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Msg("Bot is starting...")
		telegramBot.Start()
	}()

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	telegramBot.Stop()
	log.Info().Msg("Bot stopped gracefully")
}

// seedWords loads the bundled word bank. The game keeps working on an existing bank if
// the file is missing.
func seedWords(ctx context.Context, repo *repository.WordRepository, path string) {
	if path == "" {
		return
	}
	words, err := repository.LoadWords(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Word bank not loaded")
		return
	}
	if err := repo.Seed(ctx, words); err != nil {
		log.Error().Err(err).Msg("Failed to seed word bank")
		return
	}
	total, err := repo.Count(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to count words")
		return
	}
	log.Info().Int("seeded", len(words)).Int64("total", total).Msg("Word bank ready")
}

// notifierConfig converts the schedule section into recurring rules in loc.
func notifierConfig(cfg *config.ScheduleConfig, loc *time.Location) (service.NotifierConfig, error) {
	out := service.NotifierConfig{RabbitLead: cfg.RabbitLead}
	for _, r := range cfg.Rabbits {
		out.Rabbits = append(out.Rabbits, tz.Weekly{
			Weekday: time.Weekday(r.Weekday),
			Hour:    r.Hour,
			Minute:  r.Minute,
			Label:   r.Label,
			Loc:     loc,
		})
	}

	at, err := time.Parse("15:04", cfg.Birthdays)
	if err != nil {
		return out, fmt.Errorf("schedule.birthdays_at %q: %w", cfg.Birthdays, err)
	}
	out.Birthdays = tz.Daily{Hour: at.Hour(), Minute: at.Minute(), Loc: loc}
	return out, nil
}
