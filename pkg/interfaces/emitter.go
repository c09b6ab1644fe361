package interfaces

// Emitter delivers a named event to the connection with the given id.
// Delivery is best-effort: an unknown id or a congested connection drops
// the event and Emit reports false. It must never block the caller.
type Emitter interface {
	Emit(toID, event string, payload any) bool
}
