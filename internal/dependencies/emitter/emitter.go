package emitter

import "github.com/wjz20050714-stack/JIFEN/internal/model"

// Emitter delivers outbound events to connected clients and manages the
// broadcast group (one per room) each connection belongs to.
// Implementations must not block the caller on slow clients.
type Emitter interface {
	// Join adds the connection to the room's broadcast group
	Join(conn model.ConnID, room model.RoomID)
	// Leave removes the connection from the room's broadcast group
	Leave(conn model.ConnID, room model.RoomID)
	// CloseRoom drops the broadcast group once the room is deleted
	CloseRoom(room model.RoomID)

	// ToConn sends an event to a single connection
	ToConn(conn model.ConnID, event model.EventType, payload any)
	// ToRoom sends an event to every connection in the room
	ToRoom(room model.RoomID, event model.EventType, payload any)
	// ToRoomExcept sends an event to every connection in the room but one
	ToRoomExcept(room model.RoomID, except model.ConnID, event model.EventType, payload any)
}
