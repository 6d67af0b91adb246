package chat

import (
	"regexp"
	"strings"

	"github.com/adamavenir/huddle/internal/types"
	"github.com/gen2brain/beeep"
)

// Notifier shows a desktop notification.
type Notifier func(title, body string) error

// DesktopNotifier sends notifications through the OS notification center.
func DesktopNotifier(title, body string) error {
	return beeep.Notify(title, body, "")
}

// Mentions reports whether content carries an @mention of name.
func Mentions(content, name string) bool {
	if name == "" {
		return false
	}
	re := regexp.MustCompile(`(?i)(^|[^\w@])@` + regexp.QuoteMeta(name) + `($|[^\w.-]|[.-]($|\s))`)
	return re.MatchString(content)
}

// notificationFor builds the notification of a message that mentions the viewer.
func notificationFor(msg types.Message, senderName, channelName, projectName string) (string, string) {
	title := senderName + " in #" + channelName
	if projectName != "" {
		title = projectName + " · " + title
	}
	return title, truncateNotification(msg.Content, 100)
}

func truncateNotification(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "…"
}
