package db

import (
	"database/sql"

	"github.com/thatsimonsguy/trv-controller/internal/model"
)

// Store adapts the database to the coordinator's persistence interface.
type Store struct {
	conn *sql.DB
}

func NewStore(conn *sql.DB) *Store {
	return &Store{conn: conn}
}

func (s *Store) SaveRuntime(roomID string, rt model.Runtime) error {
	return SaveRoomRuntime(s.conn, roomID, rt)
}

func (s *Store) InsertRoom(cfg model.RoomConfig, rt model.Runtime) error {
	return InsertRoom(s.conn, cfg, rt)
}

func (s *Store) DeleteRoom(id string) error {
	return DeleteRoom(s.conn, id)
}
