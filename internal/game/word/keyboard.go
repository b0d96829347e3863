package word

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"
)

// CallbackPrefix is the prefix of all word game callback data.
const CallbackPrefix = "word_"

// Callback actions.
const (
	ActionCategory   = "cat"
	ActionDifficulty = "diff"
	ActionHint       = "hint"
	ActionSkip       = "skip"
)

// AnyCategory is the callback parameter for "no category filter".
const AnyCategory = "*"

// maxCallbackData is Telegram's limit on callback data length in bytes.
const maxCallbackData = 64

// EncodeCallback encodes an action and parameter into callback data.
func EncodeCallback(action, param string) string {
	if param != "" {
		return fmt.Sprintf("%s%s_%s", CallbackPrefix, action, param)
	}
	return CallbackPrefix + action
}

// DecodeCallback decodes callback data into action and parameter.
func DecodeCallback(data string) (action, param string) {
	data = strings.TrimPrefix(data, "\f")
	if !strings.HasPrefix(data, CallbackPrefix) {
		return "", ""
	}
	parts := strings.SplitN(strings.TrimPrefix(data, CallbackPrefix), "_", 2)
	action = parts[0]
	if len(parts) > 1 {
		param = parts[1]
	}
	return action, param
}

// EncodeFilter packs a category and difficulty into a callback parameter.
func EncodeFilter(category string, difficulty int) string {
	if category == "" {
		category = AnyCategory
	}
	return fmt.Sprintf("%d|%s", difficulty, category)
}

// DecodeFilter reverses EncodeFilter.
func DecodeFilter(param string) (Filter, bool) {
	diff, category, ok := strings.Cut(param, "|")
	if !ok {
		return Filter{}, false
	}
	d, err := strconv.Atoi(diff)
	if err != nil || d < 0 || d > 3 {
		return Filter{}, false
	}
	if category == AnyCategory {
		category = ""
	}
	return Filter{Category: category, Difficulty: d}, true
}

// BuildCategoryPanel lists the categories two per row, with an "any" button last.
func BuildCategoryPanel(categories []string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	var rows [][]tele.InlineButton
	var row []tele.InlineButton
	for _, c := range categories {
		data := EncodeCallback(ActionCategory, c)
		if len(data) > maxCallbackData {
			continue
		}
		row = append(row, tele.InlineButton{Text: c, Data: data})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []tele.InlineButton{{Text: "🎲 Любая категория", Data: EncodeCallback(ActionCategory, AnyCategory)}})
	markup.InlineKeyboard = rows
	return markup
}

// BuildDifficultyPanel offers the three tiers for the chosen category.
func BuildDifficultyPanel(category string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	tiers := make([]tele.InlineButton, 0, 3)
	for d := 1; d <= 3; d++ {
		tiers = append(tiers, tele.InlineButton{
			Text: stars(d),
			Data: EncodeCallback(ActionDifficulty, EncodeFilter(category, d)),
		})
	}
	markup.InlineKeyboard = [][]tele.InlineButton{
		tiers,
		{{Text: "🎲 Любая сложность", Data: EncodeCallback(ActionDifficulty, EncodeFilter(category, 0))}},
	}
	return markup
}

// BuildRoundPanel gives the host hint and skip buttons.
func BuildRoundPanel() *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.InlineKeyboard = [][]tele.InlineButton{{
		{Text: "💡 Подсказка", Data: EncodeCallback(ActionHint, "")},
		{Text: "⏭ Пропустить", Data: EncodeCallback(ActionSkip, "")},
	}}
	return markup
}
