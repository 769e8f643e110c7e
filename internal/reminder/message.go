package reminder

import (
	"fmt"
	"time"

	"taskmanager/internal/mailer"
)

const subjectPrefixLen = 40

// Target is a task joined with its owner's contact details.
type Target struct {
	TaskID       string
	Description  string
	ReminderAt   *time.Time
	ReminderSent bool
	OwnerName    string
	OwnerEmail   string
}

func subject(description string) string {
	if description == "" {
		return "Reminder: Task"
	}
	r := []rune(description)
	if len(r) > subjectPrefixLen {
		r = r[:subjectPrefixLen]
	}
	return "Reminder: " + string(r)
}

// Compose builds the reminder email for t. To is empty when the owner has no address.
func Compose(t Target, from string) (*mailer.Message, error) {
	scheduled := "not set"
	if t.ReminderAt != nil {
		scheduled = t.ReminderAt.UTC().Format(time.RFC1123)
	}
	text := fmt.Sprintf("Reminder for your task:\n\n%s\n\nScheduled at: %s", t.Description, scheduled)

	html, err := mailer.RenderHTML(text)
	if err != nil {
		return nil, err
	}
	if from == "" {
		from = mailer.DefaultFrom
	}
	return &mailer.Message{
		From:    from,
		To:      mailer.Recipient(t.OwnerName, t.OwnerEmail),
		Subject: subject(t.Description),
		Text:    text,
		HTML:    html,
	}, nil
}
