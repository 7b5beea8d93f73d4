package mocks

import (
	"encoding/json"
	"sync"

	"github.com/wjz20050714-stack/JIFEN/internal/dependencies/emitter"
	"github.com/wjz20050714-stack/JIFEN/internal/model"
)

// Target describes who an emitted event was addressed to
type Target string

const (
	TargetConn       Target = "conn"
	TargetRoom       Target = "room"
	TargetRoomExcept Target = "room_except"
)

// Emission is one recorded outbound event
type Emission struct {
	Target  Target
	Conn    model.ConnID // Recipient for TargetConn, excluded conn for TargetRoomExcept
	Room    model.RoomID
	Event   model.EventType
	Payload any

	// Data is the payload as JSON at the moment it was emitted
	Data json.RawMessage
}

// Decode unmarshals the emitted JSON into target, which is how a client
// would observe it
func (e Emission) Decode(target any) error {
	return json.Unmarshal(e.Data, target)
}

// MockEmitter records every emitted event and tracks group membership
type MockEmitter struct {
	mu        sync.Mutex
	Emissions []Emission
	Groups    map[model.RoomID]map[model.ConnID]bool
	Closed    []model.RoomID
}

// Ensure MockEmitter implements Emitter
var _ emitter.Emitter = (*MockEmitter)(nil)

// NewMockEmitter creates an empty MockEmitter
func NewMockEmitter() *MockEmitter {
	return &MockEmitter{Groups: make(map[model.RoomID]map[model.ConnID]bool)}
}

func (m *MockEmitter) Join(conn model.ConnID, room model.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Groups[room] == nil {
		m.Groups[room] = make(map[model.ConnID]bool)
	}
	m.Groups[room][conn] = true
}

func (m *MockEmitter) Leave(conn model.ConnID, room model.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Groups[room], conn)
}

func (m *MockEmitter) CloseRoom(room model.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Groups, room)
	m.Closed = append(m.Closed, room)
}

func (m *MockEmitter) ToConn(conn model.ConnID, event model.EventType, payload any) {
	m.record(Emission{Target: TargetConn, Conn: conn, Event: event, Payload: payload})
}

func (m *MockEmitter) ToRoom(room model.RoomID, event model.EventType, payload any) {
	m.record(Emission{Target: TargetRoom, Room: room, Event: event, Payload: payload})
}

func (m *MockEmitter) ToRoomExcept(room model.RoomID, except model.ConnID, event model.EventType, payload any) {
	m.record(Emission{Target: TargetRoomExcept, Room: room, Conn: except, Event: event, Payload: payload})
}

func (m *MockEmitter) record(e Emission) {
	data, err := json.Marshal(e.Payload)
	if err != nil {
		panic(err)
	}
	e.Data = data
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Emissions = append(m.Emissions, e)
}

// All returns a copy of every recorded emission
func (m *MockEmitter) All() []Emission {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Emission, len(m.Emissions))
	copy(out, m.Emissions)
	return out
}

// OfType returns the recorded emissions with the given event type
func (m *MockEmitter) OfType(event model.EventType) []Emission {
	var out []Emission
	for _, e := range m.All() {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// Last returns the most recent emission and whether there was one
func (m *MockEmitter) Last() (Emission, bool) {
	all := m.All()
	if len(all) == 0 {
		return Emission{}, false
	}
	return all[len(all)-1], true
}

// Count returns the number of recorded emissions
func (m *MockEmitter) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Emissions)
}

// InGroup reports whether conn is currently in the room's group
func (m *MockEmitter) InGroup(conn model.ConnID, room model.RoomID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Groups[room][conn]
}

// Reset clears recorded emissions but keeps group membership
func (m *MockEmitter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Emissions = nil
}
