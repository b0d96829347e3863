package duel

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"derby-bot/internal/game"
)

var (
	shootPhrases = map[string]bool{"выстрел": true, "стреляю": true, "shoot": true}
	aimPhrases   = map[string]bool{"прицел": true, "целюсь": true, "aim": true}
	resetPhrases = map[string]bool{"сброс прицела": true, "reset aim": true}
)

// Name implements game.TextGame.
func (m *Manager) Name() string { return "duel" }

// HandleText reacts to turn phrases while a duel runs in the chat. Phrases from bystanders
// are consumed without a reply.
func (m *Manager) HandleText(ctx context.Context, msg game.Message) (*game.Reply, bool) {
	intent := game.Intent(msg.Text)
	if !shootPhrases[intent] && !aimPhrases[intent] && !resetPhrases[intent] {
		return nil, false
	}
	if !m.Active(msg.ChatID) {
		return nil, false
	}

	var (
		text string
		err  error
	)
	switch {
	case shootPhrases[intent]:
		var res *ShotResult
		if res, err = m.Shoot(ctx, msg.ChatID, msg.From); res != nil {
			text = res.Text(m.cfg.MuteDuration)
		}
	case aimPhrases[intent]:
		var res *AimResult
		if res, err = m.Aim(msg.ChatID, msg.From); res != nil {
			text = res.Text()
		}
	default:
		var res *AimResult
		if res, err = m.ResetAim(msg.ChatID, msg.From); res != nil {
			text = res.Text()
		}
	}

	if err != nil {
		var ue game.UserError
		if errors.As(err, &ue) {
			return game.TextReply("❌ " + ue.Error()), true
		}
		log.Error().Err(err).Int64("chat_id", msg.ChatID).Msg("Duel action failed")
		return nil, true
	}
	if text == "" {
		return nil, true
	}
	return game.TextReply(text), true
}
