package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/climq/internal/dataset"
	"github.com/roach88/climq/internal/querysql"
)

// Server answers dataset requests read from one stream on another.
// Requests are handled one at a time in arrival order.
type Server struct {
	source dataset.Source
	logger *slog.Logger

	mu sync.Mutex
	w  io.Writer
}

// NewServer creates a Server over source. A nil logger discards.
func NewServer(source dataset.Source, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{source: source, logger: logger}
}

// Serve reads requests from r until EOF or ctx is done, writing responses
// to w. Malformed lines get a parse error response and do not stop the
// server.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	s.w = w
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), MaxMessageSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			s.logger.Debug("unparseable message", slog.String("error", err.Error()))
			if err := s.write(newError(nil, ParseError, "parse error: "+err.Error())); err != nil {
				return err
			}
			continue
		}
		if msg.IsNotification() {
			continue
		}
		if !msg.IsRequest() || msg.Jsonrpc != Version {
			if err := s.write(newError(msg.ID, InvalidRequest, "invalid request")); err != nil {
				return err
			}
			continue
		}
		if err := s.write(s.handle(ctx, &msg)); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	return nil
}

func (s *Server) handle(ctx context.Context, msg *Message) *Message {
	s.logger.Debug("request", slog.String("method", msg.Method))

	var (
		result any
		err    error
	)
	switch msg.Method {
	case MethodTables:
		var p DatabaseParams
		if err := decodeParams(msg.Params, &p); err != nil {
			return newError(msg.ID, InvalidParams, err.Error())
		}
		result, err = s.source.Tables(ctx, p.Database)
	case MethodSchema:
		var p DatabaseParams
		if err := decodeParams(msg.Params, &p); err != nil {
			return newError(msg.ID, InvalidParams, err.Error())
		}
		result, err = s.source.Schema(ctx, p.Database)
	case MethodExecute:
		var p ExecuteParams
		if err := decodeParams(msg.Params, &p); err != nil {
			return newError(msg.ID, InvalidParams, err.Error())
		}
		var reply dataset.Reply
		reply, err = s.source.Execute(ctx, p.Database, p.Statement)
		result = ExecuteResult{Text: reply.Render()}
	default:
		return newError(msg.ID, MethodNotFound, "method not found: "+msg.Method)
	}

	if err != nil {
		s.logger.Warn("request failed", slog.String("method", msg.Method), slog.String("error", err.Error()))
		var re *querysql.RejectedError
		switch {
		case errors.As(err, &re):
			return newError(msg.ID, CodeRejected, re.Reason)
		case errors.Is(err, dataset.ErrUnknownDatabase):
			return newError(msg.ID, InvalidParams, err.Error())
		default:
			return newError(msg.ID, InternalError, err.Error())
		}
	}

	out, err := newResult(msg.ID, result)
	if err != nil {
		return newError(msg.ID, InternalError, err.Error())
	}
	return out
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.New("missing params")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}

func (s *Server) write(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "%s\n", data); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}
