package bot

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"derby-bot/internal/config"
)

const (
	msgAdminOnly     = "❌ Недостаточно прав: команда только для администраторов"
	msgInternalPanic = "❌ Внутренняя ошибка, попробуйте позже"
)

// Members remembers who has written in an allowed group. With a whitelist configured only
// they may use the bot privately, and a private /start is what lets the word game whisper
// the secret word to a host.
type Members struct {
	mu   sync.RWMutex
	seen map[int64]time.Time
}

// NewMembers creates an empty member set.
func NewMembers() *Members {
	return &Members{seen: make(map[int64]time.Time)}
}

// Add records userID as seen now.
func (m *Members) Add(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[userID]; !ok {
		log.Debug().Int64("user_id", userID).Msg("Group member may now use private chat")
	}
	m.seen[userID] = time.Now()
}

// Has reports whether userID was seen in an allowed group.
func (m *Members) Has(userID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.seen[userID]
	return ok
}

// Len is the number of known members.
func (m *Members) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.seen)
}

// WhitelistMiddleware drops group updates from chats outside whitelist.chats and private
// updates from users who were never seen in an allowed group. An empty whitelist lets
// everything through.
func WhitelistMiddleware(cfg *config.Config, members *Members) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			chat, sender := c.Chat(), c.Sender()
			if chat == nil || sender == nil {
				return nil
			}

			if chat.Type == tele.ChatPrivate {
				if len(cfg.Whitelist.Chats) == 0 || members.Has(sender.ID) {
					return next(c)
				}
				log.Debug().Int64("user_id", sender.ID).Msg("Ignoring private chat from unknown user")
				return nil
			}

			if !cfg.IsChatAllowed(chat.ID) {
				log.Debug().Int64("chat_id", chat.ID).Msg("Ignoring update from non-whitelisted chat")
				return nil
			}
			members.Add(sender.ID)
			return next(c)
		}
	}
}

// AdminMiddleware refuses commands from users outside admin.ids.
func AdminMiddleware(cfg *config.Config) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil {
				return nil
			}
			if cfg.IsAdmin(sender.ID) {
				return next(c)
			}

			ev := log.Warn().Int64("user_id", sender.ID).Str("command", c.Text())
			if chat := c.Chat(); chat != nil {
				ev = ev.Int64("chat_id", chat.ID)
			}
			ev.Msg("Non-admin attempted admin command")
			return c.Reply(msgAdminOnly)
		}
	}
}

// updateKind classifies an update for the logs.
func updateKind(c tele.Context) string {
	if c.Callback() != nil {
		return "callback"
	}
	if msg := c.Message(); msg != nil && strings.HasPrefix(msg.Text, "/") {
		return "command"
	}
	return "message"
}

// LoggingMiddleware logs every update once it has been handled, with its duration. Failed
// updates are logged at warn level.
func LoggingMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			started := time.Now()
			err := next(c)

			ev := log.Debug()
			if err != nil {
				ev = log.Warn().Err(err)
			}
			ev = ev.Str("update", updateKind(c)).Dur("took", time.Since(started))
			if sender := c.Sender(); sender != nil {
				ev = ev.Int64("user_id", sender.ID).Str("username", sender.Username)
			}
			if chat := c.Chat(); chat != nil {
				ev = ev.Int64("chat_id", chat.ID).Str("chat_type", string(chat.Type))
			}
			if cb := c.Callback(); cb != nil {
				ev = ev.Str("data", cb.Data)
			} else {
				ev = ev.Str("text", c.Text())
			}
			ev.Msg("Update handled")
			return err
		}
	}
}

// RecoveryMiddleware turns a handler panic into a logged error and a generic answer: an
// alert for button presses, a reply otherwise.
func RecoveryMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				log.Error().
					Interface("panic", r).
					Str("update", updateKind(c)).
					Str("text", c.Text()).
					Msg("Recovered from panic in handler")
				if c.Callback() != nil {
					err = c.Respond(&tele.CallbackResponse{Text: msgInternalPanic, ShowAlert: true})
					return
				}
				err = c.Reply(msgInternalPanic)
			}()
			return next(c)
		}
	}
}
