package db

import (
	"database/sql"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/trv-controller/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	conn, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func testRoom(id string) model.RoomConfig {
	return model.RoomConfig{
		ID:               id,
		Name:             id,
		TempSensor:       id + "_temp",
		TRV:              id + "_trv",
		ReturnSensor:     id + "_return",
		WindowSensor:     id + "_window",
		CloseThreshold:   32.0,
		OpenThreshold:    30.0,
		MaxValvePosition: 100,
		Step:             0.5,
		MinTemp:          5.0,
		MaxTemp:          30.0,
	}
}

func TestSeedRooms(t *testing.T) {
	conn := setupTestDB(t)

	rooms := []model.RoomConfig{testRoom("living"), testRoom("bedroom")}
	require.NoError(t, SeedRooms(conn, rooms, 20.0))

	records, err := GetAllRooms(conn)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Ordered by id.
	assert.Equal(t, "bedroom", records[0].Config.ID)
	assert.Equal(t, "living", records[1].Config.ID)
	assert.Equal(t, 20.0, records[0].Runtime.TargetTemp)
	assert.Equal(t, model.ModeHeat, records[0].Runtime.Mode)
}

func TestSeedRoomsPreservesRuntime(t *testing.T) {
	conn := setupTestDB(t)

	rooms := []model.RoomConfig{testRoom("living")}
	require.NoError(t, SeedRooms(conn, rooms, 20.0))

	// Simulate a user change between restarts.
	require.NoError(t, SaveRoomRuntime(conn, "living", model.Runtime{
		TargetTemp:     23.5,
		Mode:           model.ModeOff,
		CloseThreshold: 40.0,
		OpenThreshold:  35.0,
	}))

	// Config changed and the controller restarted.
	rooms[0].Name = "Living Room"
	rooms[0].MaxValvePosition = 80
	require.NoError(t, SeedRooms(conn, rooms, 20.0))

	record, err := GetRoomByID(conn, "living")
	require.NoError(t, err)
	assert.Equal(t, "Living Room", record.Config.Name)
	assert.Equal(t, 80, record.Config.MaxValvePosition)
	assert.Equal(t, 23.5, record.Runtime.TargetTemp)
	assert.Equal(t, model.ModeOff, record.Runtime.Mode)
	assert.Equal(t, 40.0, record.Runtime.CloseThreshold)
	assert.Equal(t, 35.0, record.Runtime.OpenThreshold)
}

func TestInsertAndDeleteRoom(t *testing.T) {
	conn := setupTestDB(t)

	cfg := testRoom("attic")
	require.NoError(t, InsertRoom(conn, cfg, model.Runtime{TargetTemp: 19.0, Mode: model.ModeHeat}))

	record, err := GetRoomByID(conn, "attic")
	require.NoError(t, err)
	assert.Equal(t, 19.0, record.Runtime.TargetTemp)

	require.NoError(t, DeleteRoom(conn, "attic"))
	_, err = GetRoomByID(conn, "attic")
	assert.ErrorIs(t, err, model.ErrRoomNotFound)
}

func TestInsertRoomDefaultsRuntime(t *testing.T) {
	conn := setupTestDB(t)

	require.NoError(t, InsertRoom(conn, testRoom("attic"), model.Runtime{}))

	record, err := GetRoomByID(conn, "attic")
	require.NoError(t, err)
	assert.Equal(t, 20.0, record.Runtime.TargetTemp)
	assert.Equal(t, model.ModeHeat, record.Runtime.Mode)
}

func TestGetRoomByIDNotFound(t *testing.T) {
	conn := setupTestDB(t)

	_, err := GetRoomByID(conn, "nope")
	assert.ErrorIs(t, err, model.ErrRoomNotFound)
}

func TestCLIHelpers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trv.db")

	conn, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, SeedRooms(conn, []model.RoomConfig{testRoom("living")}, 20.0))
	require.NoError(t, conn.Close())

	require.NoError(t, SetRoomTargetCLI(path, "living", 24.0))
	require.NoError(t, SetRoomModeCLI(path, "living", "off"))
	require.NoError(t, SetRoomThresholdsCLI(path, "living", 40.0, 35.0))

	conn, err = Open(path)
	require.NoError(t, err)
	defer conn.Close()

	record, err := GetRoomByID(conn, "living")
	require.NoError(t, err)
	assert.Equal(t, 24.0, record.Runtime.TargetTemp)
	assert.Equal(t, model.ModeOff, record.Runtime.Mode)
	assert.Equal(t, 40.0, record.Runtime.CloseThreshold)
}

func TestCLIHelperErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trv.db")

	conn, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	assert.ErrorIs(t, SetRoomTargetCLI(path, "nope", 20.0), model.ErrRoomNotFound)
	assert.ErrorIs(t, SetRoomModeCLI(path, "nope", "cool"), model.ErrInvalidRange)
	assert.ErrorIs(t, SetRoomThresholdsCLI(path, "nope", 30.0, 32.0), model.ErrInvalidThresholds)

	// NaN compares false both ways and must not slip past the ordering check.
	assert.ErrorIs(t, SetRoomThresholdsCLI(path, "nope", math.NaN(), math.NaN()), model.ErrInvalidThresholds)
	assert.ErrorIs(t, SetRoomThresholdsCLI(path, "nope", math.Inf(1), 30.0), model.ErrInvalidThresholds)
}

func TestStoreAdapter(t *testing.T) {
	conn := setupTestDB(t)
	store := NewStore(conn)

	require.NoError(t, store.InsertRoom(testRoom("living"), model.Runtime{}))
	require.NoError(t, store.SaveRuntime("living", model.Runtime{
		TargetTemp:     22.0,
		Mode:           model.ModeHeat,
		CloseThreshold: 33.0,
		OpenThreshold:  31.0,
	}))

	record, err := GetRoomByID(conn, "living")
	require.NoError(t, err)
	assert.Equal(t, 22.0, record.Runtime.TargetTemp)
	assert.Equal(t, 33.0, record.Runtime.CloseThreshold)

	require.NoError(t, store.DeleteRoom("living"))
	_, err = GetRoomByID(conn, "living")
	assert.ErrorIs(t, err, model.ErrRoomNotFound)
}
