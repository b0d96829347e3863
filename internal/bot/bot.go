// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"derby-bot/internal/config"
	"derby-bot/internal/game/word"
	"derby-bot/internal/handler"
)

// Bot wraps the telebot instance with application handlers.
type Bot struct {
	bot     *tele.Bot
	cfg     *config.Config
	members *Members

	derbyHandler  *handler.DerbyHandler
	rosterHandler *handler.RosterHandler
	playerHandler *handler.PlayerHandler
	gameHandler   *handler.GameHandler
	wordHandler   *handler.WordHandler
	statsHandler  *handler.StatsHandler
}

// Dependencies holds all the handlers the bot routes to.
type Dependencies struct {
	Config        *config.Config
	DerbyHandler  *handler.DerbyHandler
	RosterHandler *handler.RosterHandler
	PlayerHandler *handler.PlayerHandler
	GameHandler   *handler.GameHandler
	WordHandler   *handler.WordHandler
	StatsHandler  *handler.StatsHandler
}

// NewTeleBot creates the telebot client. It is created before the handlers because the
// games send through it.
func NewTeleBot(cfg *config.Config) (*tele.Bot, error) {
	if cfg.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  cfg.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Msg("Telegram handler error")
		},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return teleBot, nil
}

// New registers the middleware and handlers on teleBot.
func New(teleBot *tele.Bot, deps *Dependencies) *Bot {
	b := &Bot{
		bot:           teleBot,
		cfg:           deps.Config,
		members:       NewMembers(),
		derbyHandler:  deps.DerbyHandler,
		rosterHandler: deps.RosterHandler,
		playerHandler: deps.PlayerHandler,
		gameHandler:   deps.GameHandler,
		wordHandler:   deps.WordHandler,
		statsHandler:  deps.StatsHandler,
	}

	b.registerMiddleware()
	b.registerHandlers()

	return b
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg, b.members))
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command and callback handlers.
func (b *Bot) registerHandlers() {
	// Subscriptions and the derby countdown
	b.bot.Handle("/start", b.derbyHandler.HandleStart)
	b.bot.Handle("/help", b.derbyHandler.HandleHelp)
	b.bot.Handle("/subscribe", b.derbyHandler.HandleSubscribe)
	b.bot.Handle("/unsubscribe", b.derbyHandler.HandleUnsubscribe)
	b.bot.Handle("/status", b.derbyHandler.HandleStatus)
	b.bot.Handle("/rabbit", b.derbyHandler.HandleRabbit)
	b.bot.Handle("/resets", b.derbyHandler.HandleResets)
	b.bot.Handle("/setderby", b.derbyHandler.HandleSetDerby)
	b.bot.Handle("/clearderby", b.derbyHandler.HandleClearDerby)

	// Roster
	b.bot.Handle("/join", b.rosterHandler.HandleJoin)
	b.bot.Handle("/leave", b.rosterHandler.HandleLeave)
	b.bot.Handle("/participants", b.rosterHandler.HandleParticipants)
	b.bot.Handle("/clearparticipants", b.rosterHandler.HandleClearParticipants)
	b.bot.Handle("/ping", b.rosterHandler.HandlePing)

	// Player directory
	b.bot.Handle("/players", b.playerHandler.HandlePlayers)
	b.bot.Handle("/player", b.playerHandler.HandlePlayer)
	b.bot.Handle("/addplayer", b.playerHandler.HandleAddPlayer)
	b.bot.Handle("/removeplayer", b.playerHandler.HandleRemovePlayer)
	b.bot.Handle("/setbirthday", b.playerHandler.HandleSetBirthday)
	b.bot.Handle("/birthdays", b.playerHandler.HandleBirthdays)

	// Games
	b.bot.Handle("/duel", b.gameHandler.HandleDuel)
	b.bot.Handle("/accept", b.gameHandler.HandleAccept)
	b.bot.Handle("/decline", b.gameHandler.HandleDecline)
	b.bot.Handle("/cancel", b.gameHandler.HandleCancel)
	b.bot.Handle("/coin", b.gameHandler.HandleCoin)
	b.bot.Handle("/word", b.wordHandler.HandleWord)
	b.bot.Handle("/hint", b.wordHandler.HandleHint)
	b.bot.Handle("/skip", b.wordHandler.HandleSkip)

	// Stats
	b.bot.Handle("/stats", b.statsHandler.HandleStats)
	b.bot.Handle("/top", b.statsHandler.HandleTop)

	// Admin handlers (with admin middleware)
	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/resetstats", b.statsHandler.HandleResetStats)

	// Free text: message counting, guesses, duel turns, coin calls and canned phrases
	b.bot.Handle(tele.OnText, b.gameHandler.HandleText)

	b.bot.Handle(tele.OnCallback, b.handleCallback)
}

// handleCallback routes callbacks by their data prefix.
func (b *Bot) handleCallback(c tele.Context) error {
	callback := c.Callback()
	if callback == nil {
		return nil
	}

	// Telebot v3 may add a \f prefix to callback data
	data := strings.TrimPrefix(callback.Data, "\f")
	log.Debug().Str("data", data).Msg("Callback received")

	if strings.HasPrefix(data, word.CallbackPrefix) {
		return b.wordHandler.HandleCallback(c)
	}
	return c.Respond()
}

// Start starts the bot polling. It blocks until Stop is called.
func (b *Bot) Start() {
	log.Info().Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Int("known_members", b.members.Len()).Msg("Stopping bot...")
	b.bot.Stop()
}
