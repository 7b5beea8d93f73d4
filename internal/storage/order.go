package storage

import (
	"sort"

	"github.com/wjz20050714-stack/JIFEN/internal/model"
)

// SortRooms orders rooms oldest first, breaking ties by id
func SortRooms(rooms []*model.Room) {
	sort.Slice(rooms, func(i, j int) bool {
		if !rooms[i].CreatedAt.Equal(rooms[j].CreatedAt) {
			return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
		}
		return rooms[i].ID < rooms[j].ID
	})
}
