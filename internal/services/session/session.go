package session

import "github.com/wjz20050714-stack/JIFEN/internal/model"

// Session is the per-connection state threaded through every handler.
// A connection is in at most one room at a time.
type Session struct {
	Conn          model.ConnID
	RoomID        model.RoomID
	ParticipantID model.ParticipantID
}

// InRoom reports whether the connection currently has an active room
func (s *Session) InRoom() bool {
	return s.RoomID != "" && s.ParticipantID != ""
}

func (s *Session) enter(roomID model.RoomID, id model.ParticipantID) {
	s.RoomID = roomID
	s.ParticipantID = id
}

func (s *Session) clear() {
	s.RoomID = ""
	s.ParticipantID = ""
}
