package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/thatsimonsguy/trv-controller/db"
)

func main() {
	DebugCLI()
}

func DebugCLI() {
	var dbPath, command, roomID, mode string
	var target, closeThreshold, openThreshold float64
	flag.StringVar(&dbPath, "db", "data/trv.db", "Path to the SQLite database file")
	flag.StringVar(&command, "cmd", "", "Command to run: set-target, set-mode, set-thresholds")
	flag.StringVar(&roomID, "room", "", "Room ID")
	flag.StringVar(&mode, "mode", "", "Mode for set-mode (heat, off)")
	flag.Float64Var(&target, "target", 0, "Target temperature for set-target")
	flag.Float64Var(&closeThreshold, "close", 0, "Close threshold for set-thresholds")
	flag.Float64Var(&openThreshold, "open", 0, "Open threshold for set-thresholds")
	help := flag.Bool("help", false, "Show help")
	flag.Parse()

	if *help || command == "" {
		fmt.Println("\nUsage of trv-debug:")
		fmt.Println("  -db string\tPath to the SQLite database file (default 'data/trv.db')")
		fmt.Println("  -cmd string\tCommand to run: set-target, set-mode, set-thresholds")
		fmt.Println("  -room string\tRoom ID")
		fmt.Println("  -mode string\tMode for set-mode (heat, off)")
		fmt.Println("  -target float\tTarget temperature for set-target")
		fmt.Println("  -close float\tClose threshold for set-thresholds")
		fmt.Println("  -open float\tOpen threshold for set-thresholds")
		fmt.Println("  -help\tShow this help message")
		os.Exit(0)
	}

	if roomID == "" {
		fmt.Println("Error: room ID is required")
		os.Exit(1)
	}

	var err error
	switch command {
	case "set-target":
		err = db.SetRoomTargetCLI(dbPath, roomID, target)
	case "set-mode":
		err = db.SetRoomModeCLI(dbPath, roomID, mode)
	case "set-thresholds":
		err = db.SetRoomThresholdsCLI(dbPath, roomID, closeThreshold, openThreshold)
	default:
		fmt.Println("Invalid command")
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("Command %s failed: %v\n", command, err)
		os.Exit(1)
	}
	fmt.Printf("Command %s completed successfully\n", command)
}
