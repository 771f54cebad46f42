package main

import (
	"fmt"
	"os"
	"strings"

	"murmur/service"
)

// CliVersion is reported by the version command.
const CliVersion = "1.0.0"

var (
	exit          = os.Exit
	handleCommand = service.HandleCommand
)

func main() {
	RealMain()
}

// RealMain dispatches os.Args and exits with the command's status.
func RealMain() {
	if len(os.Args) < 2 {
		printHelp()
		exit(1)
		return
	}

	cmd := strings.ToLower(os.Args[1])
	switch cmd {
	case "help":
		printHelp()
	case "version":
		fmt.Printf("murmur version %s\n", CliVersion)
	case "serve", "reap", "db":
		if code := handleCommand(append([]string{cmd}, os.Args[2:]...)); code != 0 {
			exit(code)
		}
	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		printHelp()
		exit(1)
	}
}

func printHelp() {
	helpText := `Usage: murmur <command> [options]
Commands:
  help                 Display this help message.
  version              Show version information.
  serve                Run the feed API and the attachment reaper.
  reap                 Run one attachment sweep and exit.
  db <init|clean|backup|restore [file]>
                       Manage the badger database.
`
	fmt.Println(helpText)
}
