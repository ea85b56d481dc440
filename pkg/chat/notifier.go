package chat

import "log"

// NoticeKind classifies a user-visible condition
type NoticeKind string

const (
	NoticeSessionInit           NoticeKind = "session_init"
	NoticeCapabilityUnavailable NoticeKind = "capability_unavailable"
	NoticeTransport             NoticeKind = "transport"
)

// Notice is what the conversation reports to its notification surface
type Notice struct {
	Kind    NoticeKind
	Message string // Text meant for the user
	Err     error  // Underlying error, for logging
}

// Notifier receives user-visible error notices. It does not render anything itself.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to the Notifier interface
type NotifierFunc func(n Notice)

func (f NotifierFunc) Notify(n Notice) {
	f(n)
}

// LogNotifier writes notices to the standard logger
type LogNotifier struct{}

func (LogNotifier) Notify(n Notice) {
	if n.Err != nil {
		log.Printf("[CHAT]: %s notice: %s (%v)", n.Kind, n.Message, n.Err)
		return
	}
	log.Printf("[CHAT]: %s notice: %s", n.Kind, n.Message)
}
