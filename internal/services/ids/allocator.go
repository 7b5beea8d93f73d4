package ids

import (
	"fmt"
	"strings"

	"github.com/wjz20050714-stack/JIFEN/internal/dependencies/clock"
	"github.com/wjz20050714-stack/JIFEN/internal/dependencies/random"
	"github.com/wjz20050714-stack/JIFEN/internal/model"
)

const (
	// RoomCodeLength is the length of generated room codes
	RoomCodeLength = 6
	// RoomCodeAlphabet is the characters used in room codes
	RoomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// suffixLength and suffixAlphabet shape the random tail of participant and entry ids
	suffixLength   = 9
	suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

	participantPrefix = "player"
	entryPrefix       = "game"
)

// DefaultAvatars are the glyphs assigned to new participants
var DefaultAvatars = []string{
	"😀", "😎", "🤩", "😊", "😁", "🥳", "🤠", "🧐",
	"👨", "👩", "👦", "👧", "👨‍💻", "👩‍💻", "🦸", "🦹",
}

// Allocator produces room codes, participant ids, ledger entry ids and avatars.
// Uniqueness is probabilistic: room codes are not checked against live rooms.
type Allocator struct {
	clock  clock.Clock
	random random.Random
}

// New creates a new Allocator
func New(clk clock.Clock, rnd random.Random) *Allocator {
	return &Allocator{clock: clk, random: rnd}
}

// RoomCode returns a 6-character code drawn uniformly from [A-Z0-9]
func (a *Allocator) RoomCode() model.RoomID {
	return model.RoomID(a.random.String(RoomCodeLength, RoomCodeAlphabet))
}

// IsRoomCode reports whether id has the shape of a generated room code
func IsRoomCode(id model.RoomID) bool {
	if len(id) != RoomCodeLength {
		return false
	}
	for _, c := range string(id) {
		if !strings.ContainsRune(RoomCodeAlphabet, c) {
			return false
		}
	}
	return true
}

// ParticipantID returns an opaque presence identifier
func (a *Allocator) ParticipantID() model.ParticipantID {
	return model.ParticipantID(a.token(participantPrefix))
}

// EntryID returns an opaque ledger entry identifier
func (a *Allocator) EntryID() model.EntryID {
	return model.EntryID(a.token(entryPrefix))
}

// Avatar returns a random glyph from DefaultAvatars
func (a *Allocator) Avatar() string {
	return DefaultAvatars[a.random.Intn(len(DefaultAvatars))]
}

func (a *Allocator) token(prefix string) string {
	return fmt.Sprintf("%s_%d_%s", prefix, a.clock.Now().UnixMilli(), a.random.String(suffixLength, suffixAlphabet))
}
