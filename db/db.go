package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/thatsimonsguy/trv-controller/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	temp_sensor TEXT NOT NULL,
	trv TEXT NOT NULL,
	return_sensor TEXT NOT NULL,
	window_sensor TEXT NOT NULL DEFAULT '',
	close_threshold REAL NOT NULL,
	open_threshold REAL NOT NULL,
	max_valve_position INTEGER NOT NULL,
	step REAL NOT NULL,
	min_temp REAL NOT NULL,
	max_temp REAL NOT NULL,
	target_temp REAL NOT NULL,
	mode TEXT NOT NULL
);`

// Open opens the sqlite database and applies the schema.
func Open(dbPath string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return conn, nil
}

// SeedRooms upserts configured rooms. Static configuration columns follow
// the config file; runtime columns (target, mode, thresholds) are only set
// on first insert so user changes survive restarts.
func SeedRooms(conn *sql.DB, rooms []model.RoomConfig, defaultTarget float64) error {
	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	for _, room := range rooms {
		_, err = tx.Exec(`INSERT INTO rooms (id, name, temp_sensor, trv, return_sensor, window_sensor, close_threshold, open_threshold, max_valve_position, step, min_temp, max_temp, target_temp, mode)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				temp_sensor = excluded.temp_sensor,
				trv = excluded.trv,
				return_sensor = excluded.return_sensor,
				window_sensor = excluded.window_sensor,
				max_valve_position = excluded.max_valve_position,
				step = excluded.step,
				min_temp = excluded.min_temp,
				max_temp = excluded.max_temp`,
			room.ID, room.Name, room.TempSensor, room.TRV, room.ReturnSensor, room.WindowSensor,
			room.CloseThreshold, room.OpenThreshold, room.MaxValvePosition, room.Step,
			room.MinTemp, room.MaxTemp, defaultTarget, string(model.ModeHeat))
		if err != nil {
			return fmt.Errorf("failed to seed room %s: %w", room.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed transaction: %w", err)
	}
	return nil
}
