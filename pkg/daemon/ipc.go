package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrUnknownCommand is returned by handlers for commands they do not know.
var ErrUnknownCommand = errors.New("unknown command")

// maxCommandSize bounds one request line; EVENT carries a JSON payload.
const maxCommandSize = 64 * 1024

// IPCHandler processes one command. The result is marshalled to JSON; it
// must not be an object with a top-level "error" key.
type IPCHandler interface {
	HandleCommand(ctx context.Context, cmd, arg string) (any, error)
}

// IPCServer listens on a Unix domain socket for line-based text commands
// and answers each with one JSON line.
//
// Protocol:
//   - Client sends a single line: COMMAND [argument...]
//   - Server responds with a JSON line, or {"error": "..."} on failure.
//   - Commands: STATS [today], CLEAR, SAVE, HEALTH, EVENT {json}, QUIT
type IPCServer struct {
	socketPath string
	handler    IPCHandler
	logger     *slog.Logger

	listener net.Listener
	wg       sync.WaitGroup
}

// NewIPCServer creates a server for socketPath. A nil logger uses
// slog.Default().
func NewIPCServer(socketPath string, handler IPCHandler, logger *slog.Logger) *IPCServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &IPCServer{
		socketPath: socketPath,
		handler:    handler,
		logger:     logger,
	}
}

// Listen binds the socket with mode 0600, replacing any stale socket file.
func (s *IPCServer) Listen() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o700); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}
	_ = os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}
	s.listener = ln
	return nil
}

// Serve accepts connections until ctx is done, then waits for in-flight
// requests and removes the socket file. It calls Listen if needed.
func (s *IPCServer) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	stop := context.AfterFunc(ctx, func() { s.listener.Close() })
	defer stop()
	defer func() {
		s.wg.Wait()
		_ = os.Remove(s.socketPath)
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Debug("ipc accept failed", "error", err)
			continue
		}

		s.wg.Add(1)
		go s.handleConn(ctx, conn)
	}
}

// handleConn reads one line, dispatches it, and writes the response.
func (s *IPCServer) handleConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 1024), maxCommandSize)
	if !scanner.Scan() {
		return
	}
	line := strings.TrimSpace(scanner.Text())
	if line == "" {
		return
	}

	cmd, arg := parseIPCCommand(line)
	s.logger.Debug("ipc command", "cmd", cmd)

	result, err := s.handler.HandleCommand(ctx, cmd, arg)
	if err != nil {
		result = map[string]string{"error": err.Error()}
	}
	data, err := json.Marshal(result)
	if err != nil {
		data, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	fmt.Fprintf(conn, "%s\n", data)
}

// parseIPCCommand splits a line into an upper-cased command and the raw
// remainder.
//
//	STATS today                       -> cmd="STATS", arg="today"
//	EVENT {"type":"key", ...}         -> cmd="EVENT", arg=`{"type":"key", ...}`
func parseIPCCommand(line string) (string, string) {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	return strings.ToUpper(cmd), strings.TrimSpace(arg)
}

// IPCClient connects to a running daemon via Unix socket to send commands.
type IPCClient struct {
	socketPath string
	timeout    time.Duration
}

// NewIPCClient creates a client for the daemon at socketPath.
func NewIPCClient(socketPath string) *IPCClient {
	return &IPCClient{socketPath: socketPath, timeout: 5 * time.Second}
}

// SendCommand sends one command line and returns the raw response line.
// Each call opens and closes its own connection.
func (c *IPCClient) SendCommand(cmd string) (string, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return "", fmt.Errorf("connect to daemon: %w", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(c.timeout))

	if _, err := fmt.Fprintf(conn, "%s\n", cmd); err != nil {
		return "", fmt.Errorf("send command: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read response: %w", err)
		}
		return "", errors.New("empty response from daemon")
	}
	return scanner.Text(), nil
}

// Call sends cmd and decodes the response into out, which may be nil. A
// {"error": ...} response becomes a Go error.
func (c *IPCClient) Call(cmd string, out any) error {
	resp, err := c.SendCommand(cmd)
	if err != nil {
		return err
	}

	var failure struct {
		Error *string `json:"error"`
	}
	if err := json.Unmarshal([]byte(resp), &failure); err == nil && failure.Error != nil {
		return fmt.Errorf("daemon: %s", *failure.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(resp), out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
