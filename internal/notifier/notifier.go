// Package notifier runs the scheduled card-expiry reminder job.
package notifier

import (
	"context"
	"time"

	"github.com/Dan9191/card-service/internal/repository"
	"github.com/Dan9191/card-service/internal/utils"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// reminderWindow is how far ahead of expiry owners get notified.
const reminderWindow = 30 * 24 * time.Hour

const reminderSchedule = "0 9 * * *"

type cardSource interface {
	CardsExpiringBefore(ctx context.Context, deadline time.Time) ([]repository.ExpiringCard, error)
}

type reminderSender interface {
	SendExpiryReminder(to, username, maskedNumber string, expiresAt time.Time) error
}

// Notifier emails owners of cards that expire within the reminder window.
type Notifier struct {
	store  cardSource
	sender reminderSender
	log    *logrus.Logger
	cron   *cron.Cron
	now    func() time.Time
}

// New creates a notifier.
func New(store cardSource, sender reminderSender, log *logrus.Logger) *Notifier {
	return &Notifier{
		store:  store,
		sender: sender,
		log:    log,
		cron:   cron.New(),
		now:    time.Now,
	}
}

// Start schedules the daily reminder run.
func (n *Notifier) Start() error {
	if _, err := n.cron.AddFunc(reminderSchedule, n.Run); err != nil {
		return err
	}
	n.cron.Start()
	n.log.Info("Expiry reminder job scheduled")
	return nil
}

// Stop halts the scheduler.
func (n *Notifier) Stop() {
	n.cron.Stop()
}

// Run sends one reminder per card expiring within the window. Send
// failures are logged and do not stop the batch.
func (n *Notifier) Run() {
	ctx := context.Background()
	deadline := n.now().Add(reminderWindow)

	cards, err := n.store.CardsExpiringBefore(ctx, deadline)
	if err != nil {
		n.log.Errorf("Failed to list expiring cards: %v", err)
		return
	}

	sent := 0
	for _, c := range cards {
		if err := n.sender.SendExpiryReminder(c.Email, c.Username, utils.MaskNumber(c.Number), c.ExpiresAt); err != nil {
			n.log.Errorf("Failed to remind %s: %v", c.Email, err)
			continue
		}
		sent++
	}
	n.log.Infof("Expiry reminders sent: %d of %d", sent, len(cards))
}
