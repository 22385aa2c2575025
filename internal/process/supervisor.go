// Package process launches and supervises the game client: invocation
// build, detached-ish start with a PID file, log capture, and exit-code
// observation.
package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	gops "github.com/shirou/gopsutil/v3/process"
)

// Auth modes the client accepts.
const (
	AuthOffline       = "offline"
	AuthAuthenticated = "authenticated"
)

// LaunchSpec captures everything needed to start the game client once.
type LaunchSpec struct {
	Binary        string // client executable path
	AppDir        string // install dir; also the working directory
	UserDir       string
	JavaPath      string // runtime executable handed to the client
	DisplayName   string
	AuthMode      string // offline | authenticated
	IdentityToken string // authenticated mode only
	SessionToken  string // authenticated mode only
	ExtraArgs     []string
}

// Supervisor controls the game client process.
type Supervisor interface {
	Start(spec LaunchSpec) (int, error) // returns PID
	Wait() (int, error)                 // blocks until exit; returns exit code
	Stop() error
	IsRunning() bool
	PID() (int, bool)
	Uptime() (time.Duration, bool)
	LogPath() string
}

type supervisor struct {
	pidFile string
	logFile string
	mu      sync.Mutex
	cmd     *exec.Cmd
}

// New returns a supervisor writing its PID file and game log under home.
func New(home string) Supervisor {
	return &supervisor{
		pidFile: filepath.Join(home, "game.pid"),
		logFile: filepath.Join(home, "logs", "game.log"),
	}
}

func (s *supervisor) LogPath() string { return s.logFile }

func (s *supervisor) PID() (int, bool) {
	b, err := os.ReadFile(s.pidFile)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	if alive, _ := gops.PidExists(int32(pid)); alive {
		return pid, true
	}
	// Stale PID file from a previous run.
	_ = os.Remove(s.pidFile)
	return 0, false
}

func (s *supervisor) IsRunning() bool {
	_, ok := s.PID()
	return ok
}

func (s *supervisor) Uptime() (time.Duration, bool) {
	pid, ok := s.PID()
	if !ok {
		return 0, false
	}
	p, err := gops.NewProcess(int32(pid))
	if err != nil {
		return 0, false
	}
	createdMs, err := p.CreateTime()
	if err != nil {
		return 0, false
	}
	return time.Since(time.UnixMilli(createdMs)), true
}

// BuildArgs translates a LaunchSpec into the client's command line.
func BuildArgs(spec LaunchSpec) []string {
	args := []string{
		"--app-dir", spec.AppDir,
		"--user-dir", spec.UserDir,
		"--java", spec.JavaPath,
		"--auth-mode", spec.AuthMode,
	}
	if spec.DisplayName != "" {
		args = append(args, "--name", spec.DisplayName)
	}
	if spec.AuthMode == AuthAuthenticated {
		args = append(args, "--identity-token", spec.IdentityToken,
			"--session-token", spec.SessionToken)
	}
	return append(args, spec.ExtraArgs...)
}

// BuildEnv augments base (os.Environ form) with the native-library search
// path the client's JNI loads need, keyed by OS: LD_LIBRARY_PATH on Linux,
// DYLD_LIBRARY_PATH on macOS, PATH on Windows.
func BuildEnv(base []string, spec LaunchSpec) []string {
	key := "LD_LIBRARY_PATH"
	sep := ":"
	switch runtime.GOOS {
	case "darwin":
		key = "DYLD_LIBRARY_PATH"
	case "windows":
		key = "PATH"
		sep = ";"
	}

	javaLib := filepath.Join(filepath.Dir(filepath.Dir(spec.JavaPath)), "lib")
	extra := javaLib + sep + spec.AppDir

	out := make([]string, 0, len(base)+1)
	found := false
	for _, kv := range base {
		if strings.HasPrefix(kv, key+"=") {
			found = true
			kv = key + "=" + extra + sep + kv[len(key)+1:]
		}
		out = append(out, kv)
	}
	if !found {
		out = append(out, key+"="+extra)
	}
	return out
}

func (s *supervisor) Start(spec LaunchSpec) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if spec.Binary == "" || spec.AppDir == "" {
		return 0, errors.New("Binary and AppDir required")
	}
	switch spec.AuthMode {
	case AuthOffline:
	case AuthAuthenticated:
		if spec.IdentityToken == "" || spec.SessionToken == "" {
			return 0, errors.New("authenticated mode requires identity and session tokens")
		}
	default:
		return 0, fmt.Errorf("unknown auth mode %q", spec.AuthMode)
	}
	if s.IsRunning() {
		pid, _ := s.PID()
		return pid, nil
	}

	if spec.UserDir != "" {
		if err := os.MkdirAll(spec.UserDir, 0o755); err != nil {
			return 0, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(s.logFile), 0o755); err != nil {
		return 0, err
	}
	lf, err := os.OpenFile(s.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, err
	}

	cmd := exec.Command(spec.Binary, BuildArgs(spec)...)
	cmd.Dir = spec.AppDir
	cmd.Env = BuildEnv(os.Environ(), spec)
	cmd.Stdout = lf
	cmd.Stderr = lf
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		_ = lf.Close()
		return 0, fmt.Errorf("start game client: %w", err)
	}
	pid := cmd.Process.Pid
	if err := os.WriteFile(s.pidFile, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		_ = cmd.Process.Kill()
		_ = lf.Close()
		return 0, err
	}
	s.cmd = cmd

	// Close the log handle once the child is clearly holding its own copy.
	go func(f *os.File) {
		time.Sleep(500 * time.Millisecond)
		_ = f.Sync()
		_ = f.Close()
	}(lf)
	return pid, nil
}

// Wait blocks until the process started by this supervisor exits and
// returns its exit code. A game crash is an exit code here, not an error;
// the error return covers supervision failures only.
func (s *supervisor) Wait() (int, error) {
	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()
	if cmd == nil {
		return 0, errors.New("no process started by this supervisor")
	}

	err := cmd.Wait()
	_ = os.Remove(s.pidFile)
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

func (s *supervisor) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pid, ok := s.PID()
	if !ok {
		return nil
	}
	p, err := gops.NewProcess(int32(pid))
	if err != nil {
		_ = os.Remove(s.pidFile)
		return nil
	}

	_ = p.Terminate()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		if alive, _ := gops.PidExists(int32(pid)); !alive {
			_ = os.Remove(s.pidFile)
			return nil
		}
		time.Sleep(300 * time.Millisecond)
	}

	_ = p.Kill()
	killDeadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(killDeadline) {
		if alive, _ := gops.PidExists(int32(pid)); !alive {
			_ = os.Remove(s.pidFile)
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	_ = os.Remove(s.pidFile)
	if alive, _ := gops.PidExists(int32(pid)); alive {
		return errors.New("failed to stop game client")
	}
	return nil
}
