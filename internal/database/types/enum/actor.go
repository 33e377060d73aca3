package enum

// ActorKind identifies which kind of identity caused an event.
type ActorKind int

const (
	// ActorKindAutoDetection is the automatic detection pipeline.
	ActorKindAutoDetection ActorKind = iota
	// ActorKindChatUser is a user on the chat platform, usually a chat admin.
	ActorKindChatUser
	// ActorKindWebUser is a user of the web console.
	ActorKindWebUser
	// ActorKindSystem is a named background process.
	ActorKindSystem
)

// String returns the name of the actor kind.
func (k ActorKind) String() string {
	switch k {
	case ActorKindAutoDetection:
		return "AutoDetection"
	case ActorKindChatUser:
		return "ChatUser"
	case ActorKindWebUser:
		return "WebUser"
	case ActorKindSystem:
		return "System"
	default:
		return "Unknown"
	}
}

// IsManual returns true for actors that represent a human decision.
func (k ActorKind) IsManual() bool {
	return k == ActorKindChatUser || k == ActorKindWebUser
}
