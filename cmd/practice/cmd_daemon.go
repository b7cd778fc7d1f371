package main

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/felixgeelhaar/codepractice/internal/config"
)

var api = newClient(daemonAddr)

// cmdStart starts the daemon in the background
func cmdStart() error {
	if isRunning() {
		fmt.Println(successStyle.Render("✓ Daemon is already running"))
		return nil
	}

	dir, err := config.EnsureDir()
	if err != nil {
		return fmt.Errorf("setup config directory: %w", err)
	}

	daemonPath, err := findDaemonBinary()
	if err != nil {
		return fmt.Errorf("find daemon binary: %w", err)
	}

	cmd := exec.Command(daemonPath)
	cmd.Dir = dir
	cmd.Stdout = nil
	cmd.Stderr = nil

	// Detach from parent process (platform-specific)
	configureDaemonProcess(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	fmt.Print("Starting daemon...")
	for range 30 {
		time.Sleep(100 * time.Millisecond)
		if isRunning() {
			fmt.Println(successStyle.Render(" ✓"))
			fmt.Printf("Daemon running at %s\n", daemonAddr)
			return nil
		}
		fmt.Print(".")
	}

	fmt.Println(errorStyle.Render(" ✗"))
	return fmt.Errorf("daemon failed to start (check logs with 'practice logs')")
}

// cmdStop stops the daemon
func cmdStop() error {
	if !isRunning() {
		fmt.Println("Daemon is not running")
		return nil
	}

	dir, err := config.Dir()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Join(dir, pidFile))
	if err != nil {
		return fmt.Errorf("read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("parse PID: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process: %w", err)
	}

	fmt.Print("Stopping daemon...")
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("send signal: %w", err)
	}

	for range 50 {
		time.Sleep(100 * time.Millisecond)
		if !isRunning() {
			fmt.Println(successStyle.Render(" ✓"))
			return nil
		}
		fmt.Print(".")
	}

	fmt.Println(errorStyle.Render(" ✗"))
	return fmt.Errorf("daemon did not stop gracefully")
}

// cmdStatus shows daemon status
func cmdStatus() error {
	if !isRunning() {
		fmt.Println("Status: " + mutedStyle.Render("stopped"))
		return nil
	}

	var status struct {
		Status          string   `json:"status"`
		Version         string   `json:"version"`
		UptimeSeconds   int      `json:"uptime_seconds"`
		LLMProviders    []string `json:"llm_providers"`
		DefaultProvider string   `json:"default_provider"`
		Languages       []string `json:"languages"`
		Runner          string   `json:"runner"`
		ActiveSessions  int      `json:"active_sessions"`
		Bank            struct {
			ExerciseCount int `json:"exercise_count"`
		} `json:"bank"`
	}
	if err := api.get("/v1/status", &status); err != nil {
		return fmt.Errorf("get status: %w", err)
	}

	providers := strings.Join(status.LLMProviders, ", ")
	if providers == "" {
		providers = mutedStyle.Render("none (hints and feedback disabled)")
	}

	fmt.Printf("Status:    %s\n", successStyle.Render(status.Status))
	fmt.Printf("Version:   %s\n", status.Version)
	fmt.Printf("Uptime:    %s\n", time.Duration(status.UptimeSeconds)*time.Second)
	fmt.Printf("Runner:    %s (%s)\n", status.Runner, strings.Join(status.Languages, ", "))
	fmt.Printf("Providers: %s\n", providers)
	fmt.Printf("Exercises: %d in bank\n", status.Bank.ExerciseCount)
	fmt.Printf("Sessions:  %d active\n", status.ActiveSessions)
	fmt.Printf("Address:   %s\n", daemonAddr)

	return nil
}

// cmdLogs shows the tail of the daemon log
func cmdLogs() error {
	dir, err := config.Dir()
	if err != nil {
		return err
	}

	logPath := filepath.Join(dir, "logs", "practiced.log")
	file, err := os.Open(logPath)
	if os.IsNotExist(err) {
		fmt.Println("No log file found. Start the daemon first.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	// Seek back ~4KB for recent logs
	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat log file: %w", err)
	}
	offset := max(info.Size()-4096, 0)
	if _, err := file.Seek(offset, 0); err != nil {
		return fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReader(file)
	if offset > 0 {
		// Skip the partial first line
		_, _ = reader.ReadString('\n')
	}

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		fmt.Println(scanner.Text())
	}
	return scanner.Err()
}

// isRunning checks if the daemon is running by calling the health endpoint
func isRunning() bool {
	c := &http.Client{Timeout: 2 * time.Second}
	resp, err := c.Get(daemonAddr + "/v1/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// findDaemonBinary locates the practiced binary
func findDaemonBinary() (string, error) {
	if path, err := exec.LookPath("practiced"); err == nil {
		return path, nil
	}

	// Next to this binary
	if self, err := os.Executable(); err == nil {
		path := filepath.Join(filepath.Dir(self), "practiced")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	for _, path := range []string{
		"/usr/local/bin/practiced",
		"./practiced",
		"./cmd/practiced/practiced",
	} {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("practiced binary not found (build with 'go build ./cmd/practiced')")
}
