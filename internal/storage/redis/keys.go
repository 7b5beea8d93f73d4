package redis

import (
	"fmt"

	"github.com/wjz20050714-stack/JIFEN/internal/model"
)

// Key prefix for all room data
const keyPrefix = "jifen"

// roomKey returns the Redis key for a Room snapshot
func roomKey(id model.RoomID) string {
	return fmt.Sprintf("%s:room:%s", keyPrefix, id)
}

// roomIndexKey returns the Redis key for the SET of live room keys
func roomIndexKey() string {
	return fmt.Sprintf("%s:idx:rooms", keyPrefix)
}
