package service

// Conn is one authenticated client connection as seen by the services
type Conn interface {
	ID() string
	UserID() string
}

// Broadcaster interface for channel fan-out (avoids import cycle)
type Broadcaster interface {
	Join(conn Conn, channel string)
	Leave(conn Conn, channel string)
	// CloseChannel unsubscribes every member of channel
	CloseChannel(channel string)
	Emit(conn Conn, event string, payload interface{})
	Publish(channel, event string, payload interface{}) int
	PublishExcept(channel string, except Conn, event string, payload interface{}) int
}

// UserChannel is the private channel of a user
func UserChannel(userID string) string {
	return "user:" + userID
}

// CallChannel is the shared channel of a call's participants
func CallChannel(callID string) string {
	return "call:" + callID
}

// Actor is the user a request is performed for. Conn is nil when the request
// did not arrive over a realtime connection (REST, sweeper).
type Actor struct {
	UserID string
	Conn   Conn
}

// reply sends to the actor's connection when there is one, otherwise to every
// connection in the actor's private channel.
func reply(b Broadcaster, actor Actor, event string, payload interface{}) {
	if actor.Conn != nil {
		b.Emit(actor.Conn, event, payload)
		return
	}
	b.Publish(UserChannel(actor.UserID), event, payload)
}
