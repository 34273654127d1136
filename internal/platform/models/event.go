package models

const (
	EventTaskCreated       = "task.created"
	EventTaskUpdated       = "task.updated"
	EventTaskCompleted     = "task.completed"
	EventTaskDeleted       = "task.deleted"
	EventMemberJoined      = "member.joined"
	EventMemberRemoved     = "member.removed"
	EventProjectCreated    = "project.created"
	EventInvitationCreated = "invitation.created"
	EventWebhookTest       = "webhook.test"
)

// EventCatalog lists every event type a webhook may subscribe to.
var EventCatalog = []string{
	EventTaskCreated,
	EventTaskUpdated,
	EventTaskCompleted,
	EventTaskDeleted,
	EventMemberJoined,
	EventMemberRemoved,
	EventProjectCreated,
	EventInvitationCreated,
	EventWebhookTest,
}

func KnownEvent(eventType string) bool {
	for _, e := range EventCatalog {
		if e == eventType {
			return true
		}
	}
	return false
}
