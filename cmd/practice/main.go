package main

import (
	"fmt"
	"os"
)

// Version is set at build time via ldflags
var Version = "dev"

const (
	daemonAddr = "http://127.0.0.1:7433"
	pidFile    = "practiced.pid"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "start":
		err = cmdStart()
	case "stop":
		err = cmdStop()
	case "status":
		err = cmdStatus()
	case "logs":
		err = cmdLogs()
	case "exercises":
		err = cmdExercises(args)
	case "check":
		err = cmdCheck(args)
	case "compare":
		err = cmdCompare(args)
	case "history":
		err = cmdHistory(args)
	case "progress":
		err = cmdProgress(args)
	case "notes":
		err = cmdNotes(args)
	case "usage":
		err = cmdUsage(args)
	case "mcp":
		err = cmdMCP()
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Printf("practice %s\n", Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`codepractice - SQL and Python practice with result-based checking

Usage:
  practice <command> [arguments]

Daemon Commands:
  start                              Start the practice daemon
  stop                               Stop the practice daemon
  status                             Show daemon status
  logs                               View daemon logs

Practice Commands:
  exercises [category]               List categories or the exercises in one
  check <category> <id> <file>       Check the answer in file against an exercise
  compare <language> <actual> <expected>
                                     Compare two result files (JSON rows or text)
  progress [category]                Show levels, or progress in one category
  progress level-up <category>       Unlock the next level

History & Notes:
  history [category]                 List finished sessions
  history clear                      Delete all history
  notes [category]                   Show notes
  notes export <file>                Export notes to a JSON file
  notes import <file>                Replace notes from a JSON file
  notes restore                      Undo the last notes change

Budget:
  usage                              Show today's token usage
  usage admin <secret>               Lift the daily limit

Integration Commands:
  mcp                                Start MCP server on stdio

Other:
  help                               Show this help message
  version                            Show version information

Examples:
  practice start
  practice exercises "Data Analysis"
  practice check "Data Analysis" da-1 answer.sql
  practice compare python out.txt expected.txt`)
}
