// Package notify delivers workout-complete messages and next-day reminders.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"
)

// SettingEnabled is the settings key holding the on/off toggle.
const SettingEnabled = "notifications_enabled"

const (
	TagComplete = "workout-complete"
	TagReminder = "workout-reminder"

	deliverTimeout = 10 * time.Second
)

var motivational = []string{
	"Great workout! You're getting stronger every day! 💪",
	"Awesome job! Your dedication is paying off! 🔥",
	"You crushed it! Keep up the amazing work! ⭐",
	"Fantastic effort! You're building healthy habits! 🌟",
	"Well done! Every workout counts towards your goals! 🎯",
}

// Settings persists the notification toggle.
type Settings interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Message is one notification.
type Message struct {
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	Tag    string    `json:"tag"`
	Detail string    `json:"detail,omitempty"`
	SentAt time.Time `json:"sent_at"`
}

// Sink delivers messages somewhere a user will see them.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// Options configures a Dispatcher.
type Options struct {
	// ReminderAfter delays the follow-up reminder. Zero disables reminders.
	ReminderAfter time.Duration
	Sinks         []Sink
	// Pick chooses a message index in [0, n). Defaults to math/rand.
	Pick func(n int) int
}

// Dispatcher sends a motivational message after each completed session and
// schedules a reminder. Every message is logged; sinks only receive
// messages while notifications are enabled.
type Dispatcher struct {
	settings      Settings
	log           *slog.Logger
	sinks         []Sink
	reminderAfter time.Duration
	pick          func(int) int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	reminder *time.Timer
	closed   bool
}

// New creates a Dispatcher. Call Close to stop pending reminders.
func New(settings Settings, log *slog.Logger, opts Options) *Dispatcher {
	if opts.Pick == nil {
		opts.Pick = rand.IntN
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		settings:      settings,
		log:           log,
		sinks:         opts.Sinks,
		reminderAfter: opts.ReminderAfter,
		pick:          opts.Pick,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Enabled reports the stored toggle. Unset means disabled.
func (d *Dispatcher) Enabled(ctx context.Context) (bool, error) {
	v, ok, err := d.settings.GetSetting(ctx, SettingEnabled)
	if err != nil {
		return false, fmt.Errorf("reading notification setting: %w", err)
	}
	if !ok {
		return false, nil
	}
	enabled, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing notification setting %q: %w", v, err)
	}
	return enabled, nil
}

// SetEnabled stores the toggle. Disabling also cancels a pending reminder.
func (d *Dispatcher) SetEnabled(ctx context.Context, enabled bool) error {
	if err := d.settings.SetSetting(ctx, SettingEnabled, strconv.FormatBool(enabled)); err != nil {
		return fmt.Errorf("writing notification setting: %w", err)
	}
	if !enabled {
		d.mu.Lock()
		if d.reminder != nil {
			d.reminder.Stop()
			d.reminder = nil
		}
		d.mu.Unlock()
	}
	d.log.Info("notifications toggled", "enabled", enabled)
	return nil
}

// SessionCompleted sends a random motivational message and replaces any
// pending reminder. It returns immediately.
func (d *Dispatcher) SessionCompleted(summary string) {
	msg := Message{
		Title:  "Workout Complete!",
		Body:   motivational[d.pick(len(motivational))],
		Tag:    TagComplete,
		Detail: summary,
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if d.deliver(msg) {
			d.scheduleReminder()
		}
	}()
}

// Close cancels the reminder and waits for in-flight deliveries.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	if d.reminder != nil {
		d.reminder.Stop()
		d.reminder = nil
	}
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
}

// deliver logs msg and forwards it to the sinks when enabled. It reports
// whether notifications were enabled.
func (d *Dispatcher) deliver(msg Message) bool {
	msg.SentAt = time.Now()
	d.log.Info(msg.Title, "body", msg.Body, "tag", msg.Tag, "detail", msg.Detail)

	ctx, cancel := context.WithTimeout(d.ctx, deliverTimeout)
	defer cancel()

	enabled, err := d.Enabled(ctx)
	if err != nil {
		d.log.Warn("notification setting unavailable", "error", err)
		return false
	}
	if !enabled {
		return false
	}
	for _, s := range d.sinks {
		if err := s.Send(ctx, msg); err != nil {
			d.log.Warn("notification delivery failed", "tag", msg.Tag, "error", err)
		}
	}
	return true
}

func (d *Dispatcher) scheduleReminder() {
	if d.reminderAfter <= 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if d.reminder != nil {
		d.reminder.Stop()
	}
	d.reminder = time.AfterFunc(d.reminderAfter, d.fireReminder)
}

func (d *Dispatcher) fireReminder() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.reminder = nil
	d.wg.Add(1)
	d.mu.Unlock()

	defer d.wg.Done()
	d.deliver(Message{
		Title: "Time for your workout! 💪",
		Body:  "Keep up your fitness routine and stay strong!",
		Tag:   TagReminder,
	})
}
