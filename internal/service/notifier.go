package service

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/rs/zerolog/log"

	"derby-bot/internal/model"
	"derby-bot/internal/pkg/tz"
)

// RecurringScheduler registers triggers that fire for the life of the process.
type RecurringScheduler interface {
	ScheduleRecurring(name string, rule tz.Rule, fn func(at time.Time))
}

// BirthdayFinder finds the players celebrating on a date.
type BirthdayFinder interface {
	BornOn(ctx context.Context, day time.Time) ([]*model.Player, error)
}

// NotifierConfig is the fixed weekly and daily timetable.
type NotifierConfig struct {
	Rabbits    []tz.Weekly
	RabbitLead time.Duration
	Birthdays  tz.Daily
}

// Notifier broadcasts the rabbit windows, their pre-reminders and birthday greetings.
type Notifier struct {
	cfg         NotifierConfig
	scheduler   RecurringScheduler
	broadcaster Broadcaster
	birthdays   BirthdayFinder
}

// NewNotifier creates a new Notifier instance.
func NewNotifier(cfg NotifierConfig, scheduler RecurringScheduler, broadcaster Broadcaster, birthdays BirthdayFinder) *Notifier {
	return &Notifier{
		cfg:         cfg,
		scheduler:   scheduler,
		broadcaster: broadcaster,
		birthdays:   birthdays,
	}
}

// Start registers every recurring trigger.
func (n *Notifier) Start() {
	for i, w := range n.cfg.Rabbits {
		w := w
		n.scheduler.ScheduleRecurring(fmt.Sprintf("rabbit:%d", i), w, func(time.Time) {
			n.send(RabbitText(w), true)
		})
		if n.cfg.RabbitLead > 0 {
			n.scheduler.ScheduleRecurring(fmt.Sprintf("rabbit-lead:%d", i), tz.Lead{Rule: w, By: n.cfg.RabbitLead}, func(time.Time) {
				n.send(RabbitLeadText(n.cfg.RabbitLead), true)
			})
		}
	}
	n.scheduler.ScheduleRecurring("birthdays", n.cfg.Birthdays, n.greetBirthdays)

	log.Info().Int("rabbits", len(n.cfg.Rabbits)).Dur("lead", n.cfg.RabbitLead).Msg("Recurring notifications scheduled")
}

// Rabbits returns the weekly timetable.
func (n *Notifier) Rabbits() []tz.Weekly {
	return n.cfg.Rabbits
}

// NextRabbit returns the soonest rabbit window after now.
func (n *Notifier) NextRabbit(now time.Time) (tz.Weekly, time.Time, bool) {
	return tz.NextWeekly(now, n.cfg.Rabbits)
}

func (n *Notifier) greetBirthdays(at time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	day := at.In(n.cfg.Birthdays.Loc)
	players, err := n.birthdays.BornOn(ctx, day)
	if err != nil {
		log.Error().Err(err).Time("day", day).Msg("Failed to load birthdays")
		return
	}
	for _, p := range players {
		n.send(BirthdayText(p), false)
	}
}

func (n *Notifier) send(text string, withMentions bool) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	report := n.broadcaster.Broadcast(ctx, text, withMentions)
	log.Info().Int("delivered", report.Delivered).Int("failed", report.Failed).Msg("Scheduled broadcast sent")
}

// RabbitText announces a rabbit window.
func RabbitText(w tz.Weekly) string {
	return fmt.Sprintf("🐰 <b>КРОЛИК ПРИСКАКАЛ!</b>\n\n%s %s по Киеву\n\nВремя делать задания с бонусом!", w.Label, w.Clock())
}

// RabbitLeadText warns that a rabbit window is near.
func RabbitLeadText(lead time.Duration) string {
	return fmt.Sprintf("⏰ <b>Через %d минут прискачет кролик!</b>\n\nГотовьте задания!", int(lead.Minutes()))
}

// BirthdayText greets one player.
func BirthdayText(p *model.Player) string {
	return fmt.Sprintf("🎂🎉 <b>С Днём Рождения!</b> 🎉🎂\n\n%s, поздравляем тебя с Днём Рождения!\n\nЖелаем счастья, здоровья и отличных скачек! 🐰🏇",
		html.EscapeString(Greeting(p)))
}
