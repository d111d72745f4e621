// Package external handles everything that crosses the process boundary in
// a foreign shape: legacy board layouts, the 1-based point vocabulary used by
// players, the JSON state document, FIBS board strings, and gnubg's external
// player protocol.
//
// External player protocol overview:
//   - Server listens on a TCP port
//   - Client connects and sends one command per line
//   - Commands include: fibsboard, evaluation, set, version, exit
//   - Positions are sent in FIBS board format
//   - Responses are the chosen move, a cube action or an evaluation
package external

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yourusername/bgtable/pkg/advisor"
	"github.com/yourusername/bgtable/pkg/engine"
)

// Server implements the external player protocol server.
type Server struct {
	oracle   advisor.Oracle
	listener net.Listener
	mu       sync.Mutex
	running  bool
	options  ServerOptions
}

// ServerOptions configures the external player server.
type ServerOptions struct {
	Addr          string        // TCP address to listen on
	Timeout       time.Duration // Per-command oracle timeout
	PromptEnabled bool          // Send prompts after responses
}

// DefaultServerOptions returns sensible defaults.
func DefaultServerOptions() ServerOptions {
	return ServerOptions{
		Addr:          ":1234",
		Timeout:       10 * time.Second,
		PromptEnabled: true,
	}
}

// NewServer creates a new external player server answering with oracle.
func NewServer(oracle advisor.Oracle, opts ServerOptions) *Server {
	return &Server{
		oracle:  oracle,
		options: opts,
	}
}

// Start begins listening for connections.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.options.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.options.Addr, err)
	}

	s.listener = listener
	s.running = true
	log.Info().Str("addr", listener.Addr().String()).Msg("external-player-listening")

	go s.acceptLoop()

	return nil
}

// Addr returns the listening address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop stops the server.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			running := s.running
			s.mu.Unlock()
			if !running {
				return
			}
			log.Warn().Err(err).Msg("external-accept-failed")
			continue
		}

		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	logger := log.With().Str("remote", conn.RemoteAddr().String()).Logger()
	logger.Debug().Msg("external-client-connected")

	reader := bufio.NewReader(conn)

	if s.options.PromptEnabled {
		conn.Write([]byte("> "))
	}

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			logger.Debug().Err(err).Msg("external-client-gone")
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		response := s.processCommand(line)
		conn.Write([]byte(response))

		if s.options.PromptEnabled {
			conn.Write([]byte("> "))
		}

		if cmd := strings.ToLower(line); cmd == "exit" || cmd == "quit" {
			return
		}
	}
}

// processCommand processes a single command and returns the response.
func (s *Server) processCommand(cmd string) string {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return "Error: empty command\n"
	}

	switch command := strings.ToLower(parts[0]); command {
	case "version":
		return "bgtable external player protocol 1.0\n"

	case "help":
		return helpResponse

	case "exit", "quit":
		return "Goodbye\n"

	case "set":
		return s.handleSet(parts[1:])

	case "evaluation", "eval":
		return s.handleEvaluation(cmd)

	case "fibsboard":
		return s.handleFIBSBoard(cmd)

	default:
		if strings.HasPrefix(cmd, "board:") {
			return s.handleFIBSBoard(cmd)
		}
		return fmt.Sprintf("Error: unknown command '%s'\n", command)
	}
}

const helpResponse = `Available commands:
  version     - Show version information
  help        - Show this help
  set <opt>   - Set option (timeout, prompt)
  evaluation  - Evaluate a position (with FIBS board)
  fibsboard   - Get best move or cube action for a position
  exit        - Close connection
`

func (s *Server) handleSet(args []string) string {
	if len(args) < 2 {
		return "Error: set requires option and value\n"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	option, value := strings.ToLower(args[0]), args[1]
	switch option {
	case "timeout":
		secs, err := strconv.Atoi(value)
		if err != nil || secs < 1 || secs > 60 {
			return "Error: timeout must be 1-60 seconds\n"
		}
		s.options.Timeout = time.Duration(secs) * time.Second
		return fmt.Sprintf("timeout set to %ds\n", secs)

	case "prompt":
		s.options.PromptEnabled = value == "on" || value == "true" || value == "1"
		return fmt.Sprintf("prompt set to %v\n", s.options.PromptEnabled)
	}
	return fmt.Sprintf("Error: unknown option '%s'\n", option)
}

// boardRequest parses the FIBS board embedded in cmd.
func (s *Server) boardRequest(cmd string) (*FIBSBoard, advisor.Request, error) {
	start := strings.Index(cmd, "board:")
	if start < 0 {
		return nil, advisor.Request{}, fmt.Errorf("no board specified")
	}
	fb, err := ParseFIBSBoard(cmd[start:])
	if err != nil {
		return nil, advisor.Request{}, err
	}
	gs, err := fb.GameState()
	if err != nil {
		return nil, advisor.Request{}, err
	}
	return fb, advisor.NewRequest(gs, fb.Side()), nil
}

func (s *Server) callContext() (context.Context, context.CancelFunc) {
	s.mu.Lock()
	timeout := s.options.Timeout
	s.mu.Unlock()
	if timeout <= 0 {
		timeout = DefaultServerOptions().Timeout
	}
	return context.WithTimeout(context.Background(), timeout)
}

// handleEvaluation returns the win probability and cubeless equity for the
// side the board was sent to.
func (s *Server) handleEvaluation(cmd string) string {
	_, req, err := s.boardRequest(cmd)
	if err != nil {
		return fmt.Sprintf("Error: %v\n", err)
	}
	ctx, cancel := s.callContext()
	defer cancel()

	d, err := s.oracle.CubeAdvice(ctx, req)
	if err != nil {
		return fmt.Sprintf("Error: %v\n", err)
	}
	return fmt.Sprintf("%.6f %.6f\n", d.WinProbability, 2*d.WinProbability-1)
}

// handleFIBSBoard answers with a cube action or the best move.
func (s *Server) handleFIBSBoard(cmd string) string {
	fb, req, err := s.boardRequest(cmd)
	if err != nil {
		return fmt.Sprintf("Error: %v\n", err)
	}
	ctx, cancel := s.callContext()
	defer cancel()

	// Opponent has doubled: take or drop
	if fb.Doubled {
		d, err := s.oracle.CubeAdvice(ctx, req)
		if err != nil {
			return fmt.Sprintf("Error: %v\n", err)
		}
		if d.Take {
			return "take\n"
		}
		return "drop\n"
	}

	if req.Dice.Empty() {
		if fb.CanDouble && engine.CanOfferDouble(req.Cube, req.Player, false, req.Match) {
			d, err := s.oracle.CubeAdvice(ctx, req)
			if err != nil {
				return fmt.Sprintf("Error: %v\n", err)
			}
			if d.Double {
				return "double\n"
			}
		}
		return "roll\n"
	}

	a, err := s.oracle.Advise(ctx, req)
	if err != nil {
		return fmt.Sprintf("Error: %v\n", err)
	}
	if len(a.Moves) == 0 {
		return "cannot move\n"
	}
	return FormatMoves(a.Moves, req.Player) + "\n"
}
