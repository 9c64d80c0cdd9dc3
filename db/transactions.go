package db

import (
	"database/sql"
	"fmt"
	"math"

	"github.com/thatsimonsguy/trv-controller/internal/model"
)

func InsertRoom(conn *sql.DB, cfg model.RoomConfig, rt model.Runtime) error {
	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}

	mode := rt.Mode
	if !model.ValidMode(mode) {
		mode = model.ModeHeat
	}
	target := rt.TargetTemp
	if target == 0 {
		target = cfg.SnapTarget(20.0)
	}

	_, err = tx.Exec(`INSERT INTO rooms (id, name, temp_sensor, trv, return_sensor, window_sensor, close_threshold, open_threshold, max_valve_position, step, min_temp, max_temp, target_temp, mode)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cfg.ID, cfg.Name, cfg.TempSensor, cfg.TRV, cfg.ReturnSensor, cfg.WindowSensor,
		cfg.CloseThreshold, cfg.OpenThreshold, cfg.MaxValvePosition, cfg.Step,
		cfg.MinTemp, cfg.MaxTemp, target, string(mode))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert room %s: %w", cfg.ID, err)
	}
	return tx.Commit()
}

func DeleteRoom(conn *sql.DB, id string) error {
	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	_, err = tx.Exec(`DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("delete room %s: %w", id, err)
	}
	return tx.Commit()
}

func SaveRoomRuntime(conn *sql.DB, id string, rt model.Runtime) error {
	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	_, err = tx.Exec(`UPDATE rooms SET target_temp = ?, mode = ?, close_threshold = ?, open_threshold = ? WHERE id = ?`,
		rt.TargetTemp, string(rt.Mode), rt.CloseThreshold, rt.OpenThreshold, id)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("update room runtime %s: %w", id, err)
	}
	return tx.Commit()
}

// CLI helpers for the trv-debug tool. They open their own connection so the
// tool can poke a database the controller is not holding.

func SetRoomTargetCLI(dbPath, id string, target float64) error {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer conn.Close()

	result, err := conn.Exec(`UPDATE rooms SET target_temp = ? WHERE id = ?`, target, id)
	if err != nil {
		return fmt.Errorf("update target for %s: %w", id, err)
	}
	return requireRow(result, id)
}

func SetRoomModeCLI(dbPath, id, mode string) error {
	if !model.ValidMode(model.HVACMode(mode)) {
		return fmt.Errorf("%w: invalid mode %q", model.ErrInvalidRange, mode)
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer conn.Close()

	result, err := conn.Exec(`UPDATE rooms SET mode = ? WHERE id = ?`, mode, id)
	if err != nil {
		return fmt.Errorf("update mode for %s: %w", id, err)
	}
	return requireRow(result, id)
}

func SetRoomThresholdsCLI(dbPath, id string, closeThreshold, openThreshold float64) error {
	// flag.Float64Var parses "NaN"; a NaN band would pass the ordering check
	// and persist, leaving the valve unable to close.
	if math.IsNaN(closeThreshold) || math.IsInf(closeThreshold, 0) ||
		math.IsNaN(openThreshold) || math.IsInf(openThreshold, 0) {
		return fmt.Errorf("%w: thresholds must be finite, got close %v, open %v", model.ErrInvalidThresholds, closeThreshold, openThreshold)
	}
	if closeThreshold <= openThreshold {
		return fmt.Errorf("%w: close %.1f, open %.1f", model.ErrInvalidThresholds, closeThreshold, openThreshold)
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer conn.Close()

	result, err := conn.Exec(`UPDATE rooms SET close_threshold = ?, open_threshold = ? WHERE id = ?`, closeThreshold, openThreshold, id)
	if err != nil {
		return fmt.Errorf("update thresholds for %s: %w", id, err)
	}
	return requireRow(result, id)
}

func requireRow(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", model.ErrRoomNotFound, id)
	}
	return nil
}
