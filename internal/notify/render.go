package notify

import (
	"fmt"

	"github.com/iliyamo/project-portal/internal/queue"
)

// Render builds the subject and plain-text body for an event.
func Render(ev queue.NotificationEvent) (subject, body string, err error) {
	d := ev.Data
	switch ev.Type {
	case queue.EventClientDesignConfirmation:
		return fmt.Sprintf("Project %s is ready for design", ev.ProjectID),
			fmt.Sprintf("Hi %s,\n\nThanks for completing the intake. Your project %s has moved to the design phase; we will be in touch with the first drafts.\n", d["name"], ev.ProjectID), nil
	case queue.EventDeveloperDesignAlert:
		return fmt.Sprintf("[%s] ready for design", ev.ProjectID),
			fmt.Sprintf("Project %s (%s, %s) was marked ready for design.\n", ev.ProjectID, d["name"], d["email"]), nil
	case queue.EventPhaseChanged:
		return fmt.Sprintf("Project %s is now in %s", ev.ProjectID, d["phase"]),
			fmt.Sprintf("Project %s moved from %s to %s.\n", ev.ProjectID, d["from"], d["phase"]), nil
	case queue.EventPasswordReset:
		return "Reset your project password",
			fmt.Sprintf("Use the link below to choose a new password for project %s. It expires in one hour.\n\n%s\n", ev.ProjectID, d["url"]), nil
	case queue.EventMagicLink:
		return fmt.Sprintf("Your access link for %s", ev.ProjectID),
			fmt.Sprintf("Open your project status page with this link. It stays valid for seven days.\n\n%s\n", d["url"]), nil
	case queue.EventClientNewMessage:
		return fmt.Sprintf("New message on project %s", ev.ProjectID),
			fmt.Sprintf("You have a new message from the team:\n\n%s\n", d["message"]), nil
	case queue.EventDeveloperNewMessage:
		return fmt.Sprintf("[%s] new client message", ev.ProjectID),
			fmt.Sprintf("%s wrote:\n\n%s\n", d["name"], d["message"]), nil
	}
	return "", "", fmt.Errorf("unknown notification type %q", ev.Type)
}
