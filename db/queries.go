package db

import (
	"database/sql"
	"fmt"

	"github.com/thatsimonsguy/trv-controller/internal/model"
)

// RoomRecord is one persisted room: static configuration plus the durable
// runtime slice restored at startup.
type RoomRecord struct {
	Config  model.RoomConfig
	Runtime model.Runtime
}

const roomColumns = `id, name, temp_sensor, trv, return_sensor, window_sensor, close_threshold, open_threshold, max_valve_position, step, min_temp, max_temp, target_temp, mode`

// GetAllRooms retrieves every persisted room.
func GetAllRooms(conn *sql.DB) ([]RoomRecord, error) {
	rows, err := conn.Query(`SELECT ` + roomColumns + ` FROM rooms ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rooms: %w", err)
	}
	defer rows.Close()

	var records []RoomRecord
	for rows.Next() {
		record, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// GetRoomByID retrieves a single room.
func GetRoomByID(conn *sql.DB, id string) (*RoomRecord, error) {
	rows, err := conn.Query(`SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query room %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, fmt.Errorf("%w: %s", model.ErrRoomNotFound, id)
	}
	record, err := scanRoom(rows)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func scanRoom(rows *sql.Rows) (RoomRecord, error) {
	var r RoomRecord
	var mode string
	err := rows.Scan(
		&r.Config.ID, &r.Config.Name, &r.Config.TempSensor, &r.Config.TRV,
		&r.Config.ReturnSensor, &r.Config.WindowSensor,
		&r.Config.CloseThreshold, &r.Config.OpenThreshold,
		&r.Config.MaxValvePosition, &r.Config.Step,
		&r.Config.MinTemp, &r.Config.MaxTemp,
		&r.Runtime.TargetTemp, &mode,
	)
	if err != nil {
		return r, fmt.Errorf("failed to scan room: %w", err)
	}
	r.Runtime.Mode = model.HVACMode(mode)
	r.Runtime.CloseThreshold = r.Config.CloseThreshold
	r.Runtime.OpenThreshold = r.Config.OpenThreshold
	return r, nil
}
