// Copyright (c) 2025 The accentd authors
// SPDX-License-Identifier: MIT

package control

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gildo/accentd/internal/logger"
)

// Handler processes one command message and returns the reply to send
// back on the same connection.
type Handler func(payload json.RawMessage) (string, any)

// PushSink receives popup-originated messages (Selection, Dismissed,
// PopupAck). They carry no reply; the server serializes them through
// its single inbound queue before handing them over.
type PushSink func(kind string, payload json.RawMessage)

// inboundMessage is one parsed line from some client.
type inboundMessage struct {
	client *client
	kind   string
	raw    json.RawMessage
}

// client is one connected peer (popup or CLI).
type client struct {
	conn    net.Conn
	writeMu sync.Mutex
}

// write sends one encoded line; errors just mean the peer went away.
func (c *client) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_, err := c.conn.Write(data)
	return err
}

// Server owns the control socket. It accepts any number of concurrent
// clients; all inbound traffic funnels through one dispatch goroutine
// so handlers never run concurrently with each other.
type Server struct {
	path     string
	log      logger.Logger
	sink     PushSink
	listener net.Listener

	mu       sync.RWMutex
	handlers map[string]Handler
	clients  map[*client]struct{}

	inbox    chan inboundMessage
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewServer constructs a control server bound to the given socket path.
func NewServer(path string, sink PushSink, log logger.Logger) *Server {
	return &Server{
		path:     path,
		log:      log,
		sink:     sink,
		handlers: make(map[string]Handler),
		clients:  make(map[*client]struct{}),
		inbox:    make(chan inboundMessage, 64),
		stopCh:   make(chan struct{}),
	}
}

// Register associates a handler with a command kind.
func (s *Server) Register(kind string, handler Handler) {
	if kind == "" || handler == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = handler
}

// Start binds the socket and launches the accept and dispatch loops.
// A bind failure is fatal for the daemon.
func (s *Server) Start() error {
	if s.path == "" {
		return fmt.Errorf("control server requires a socket path")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}
	// Remove a stale socket left by an unclean shutdown.
	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("failed to listen on unix socket: %w", err)
	}
	if err := os.Chmod(s.path, 0o666); err != nil {
		_ = ln.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}
	s.listener = ln

	s.wg.Add(2)
	go s.acceptLoop()
	go s.dispatchLoop()
	s.log.Info("Control server listening on %s", s.path)
	return nil
}

// Stop closes the listener, all client connections, and removes the
// socket file.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if s.listener != nil {
			_ = s.listener.Close()
		}
		s.mu.Lock()
		for c := range s.clients {
			_ = c.conn.Close()
		}
		s.mu.Unlock()
		if err := os.RemoveAll(s.path); err != nil && !os.IsNotExist(err) {
			s.log.Debug("Failed to remove control socket: %v", err)
		}
	})
	s.wg.Wait()
}

// Broadcast pushes a message to every connected client. Used for
// PopupShow/PopupHide; clients that are not the popup simply ignore
// kinds they do not understand.
func (s *Server) Broadcast(kind string, payload any) error {
	data, err := Encode(kind, payload)
	if err != nil {
		return err
	}

	s.mu.RLock()
	targets := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		targets = append(targets, c)
	}
	s.mu.RUnlock()

	if len(targets) == 0 {
		return fmt.Errorf("no control clients connected")
	}
	for _, c := range targets {
		if err := c.write(data); err != nil {
			s.dropClient(c)
		}
	}
	return nil
}

// ClientCount reports how many peers are connected.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-s.stopCh:
				return
			default:
			}
			if isTransientAcceptError(err) {
				s.log.Warning("Temporary control accept error: %v", err)
				time.Sleep(50 * time.Millisecond)
				continue
			}
			s.log.Error("Control accept error: %v", err)
			return
		}

		c := &client{conn: conn}
		s.mu.Lock()
		s.clients[c] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.readLoop(c)
	}
}

// readLoop parses lines from one client into the shared inbox.
func (s *Server) readLoop(c *client) {
	defer s.wg.Done()
	defer s.dropClient(c)

	reader := bufio.NewReader(c.conn)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return
		}
		kind, raw, err := Decode(line)
		if err != nil {
			s.log.Debug("Control parse error: %v", err)
			s.reply(c, KindError, Error{Kind: ErrParse, Message: err.Error()})
			continue
		}
		select {
		case s.inbox <- inboundMessage{client: c, kind: kind, raw: raw}:
		case <-s.stopCh:
			return
		}
	}
}

// dispatchLoop serializes all inbound messages: commands run their
// handler and reply in place, popup feedback goes to the sink.
func (s *Server) dispatchLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case msg := <-s.inbox:
			s.dispatch(msg)
		}
	}
}

func (s *Server) dispatch(msg inboundMessage) {
	s.mu.RLock()
	handler := s.handlers[msg.kind]
	s.mu.RUnlock()

	if handler != nil {
		kind, payload := handler(msg.raw)
		s.reply(msg.client, kind, payload)
		return
	}

	switch msg.kind {
	case KindPopupAck, KindSelection, KindDismissed:
		if s.sink != nil {
			s.sink(msg.kind, msg.raw)
		}
	default:
		s.reply(msg.client, KindError, Error{Kind: ErrUnknown, Message: fmt.Sprintf("unknown command %q", msg.kind)})
	}
}

func (s *Server) reply(c *client, kind string, payload any) {
	data, err := Encode(kind, payload)
	if err != nil {
		s.log.Error("Control encode failed: %v", err)
		return
	}
	if err := c.write(data); err != nil {
		s.dropClient(c)
	}
}

// dropClient closes and forgets a client; disconnects are silent.
func (s *Server) dropClient(c *client) {
	s.mu.Lock()
	_, present := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()
	if present {
		_ = c.conn.Close()
	}
}

func isTransientAcceptError(err error) bool {
	if err == nil {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, syscall.EINTR)
}
