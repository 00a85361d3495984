package domain

const (
	RoleDoctor   = "doctor"
	RoleNurse    = "nurse"
	RolePharmacy = "pharmacy"
	RolePatient  = "patient"
	RoleAdmin    = "admin"
)

var Roles = []string{RoleDoctor, RoleNurse, RolePharmacy, RolePatient, RoleAdmin}

func ValidRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Inbound connection events.
const (
	EventJoin                   = "join"
	EventSendMessage            = "sendMessage"
	EventMarkAsRead             = "markAsRead"
	EventMarkConversationAsRead = "markConversationAsRead"
	EventTyping                 = "typing"
	EventStopTyping             = "stopTyping"
)

// Outbound connection events.
const (
	EventConnected         = "connected"
	EventQueuedMessages    = "queuedMessages"
	EventUnreadCounts      = "unreadCounts"
	EventOnlineUsers       = "onlineUsers"
	EventMessageSent       = "messageSent"
	EventNewMessage        = "newMessage"
	EventMessageRead       = "messageRead"
	EventUserTyping        = "userTyping"
	EventUserStopTyping    = "userStopTyping"
	EventSessionSuperseded = "sessionSuperseded"
	EventError             = "error"
)
