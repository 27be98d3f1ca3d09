package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/climq/internal/dataset"
	"github.com/roach88/climq/internal/querysql"
)

// ErrClosed is returned for calls on a closed client or after the server
// stream ended.
var ErrClosed = errors.New("rpc client closed")

// Client is a dataset.Source backed by a JSON-RPC server. Calls may be
// issued concurrently; responses are matched by ID.
type Client struct {
	w      io.WriteCloser
	r      io.ReadCloser
	cmd    *exec.Cmd
	nextID atomic.Int64

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[int64]chan *Message
	err     error
	done    chan struct{}
}

var _ dataset.Source = (*Client)(nil)

// NewClient starts reading responses from r. Requests are written to w.
func NewClient(r io.ReadCloser, w io.WriteCloser) *Client {
	c := &Client{w: w, r: r, pending: map[int64]chan *Message{}, done: make(chan struct{})}
	go c.readLoop()
	return c
}

// Start launches a server process and connects to its stdio.
func Start(ctx context.Context, command []string) (*Client, error) {
	if len(command) == 0 {
		return nil, errors.New("rpc: empty server command")
	}
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("rpc stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("rpc stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", command[0], err)
	}
	c := NewClient(stdout, stdin)
	c.cmd = cmd
	return c, nil
}

// closeGrace is how long Close waits for the server to end its stream
// before closing the response stream itself.
const closeGrace = 2 * time.Second

// Close closes the request stream and waits for the server to finish.
func (c *Client) Close() error {
	err := c.w.Close()
	if c.cmd != nil {
		<-c.done
		if werr := c.cmd.Wait(); werr != nil && err == nil {
			err = werr
		}
		return err
	}
	select {
	case <-c.done:
	case <-time.After(closeGrace):
		c.r.Close()
		<-c.done
	}
	return err
}

// Tables implements dataset.Source.
func (c *Client) Tables(ctx context.Context, database string) ([]string, error) {
	var out []string
	err := c.call(ctx, MethodTables, DatabaseParams{Database: database}, &out)
	return out, err
}

// Schema implements dataset.Source.
func (c *Client) Schema(ctx context.Context, database string) ([]dataset.TableSchema, error) {
	var out []dataset.TableSchema
	err := c.call(ctx, MethodSchema, DatabaseParams{Database: database}, &out)
	return out, err
}

// Execute implements dataset.Source. The reply carries the server's tuple
// text.
func (c *Client) Execute(ctx context.Context, database, statement string) (dataset.Reply, error) {
	var out ExecuteResult
	if err := c.call(ctx, MethodExecute, ExecuteParams{Database: database, Statement: statement}, &out); err != nil {
		return dataset.Reply{}, err
	}
	if out.Text == dataset.NoDataText || out.Text == "" {
		return dataset.Reply{NoData: true}, nil
	}
	return dataset.Reply{Text: out.Text}, nil
}

func (c *Client) call(ctx context.Context, method string, params, out any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	id := c.nextID.Add(1)
	ch := make(chan *Message, 1)

	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return c.err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.send(&Message{Jsonrpc: Version, ID: id, Method: method, Params: raw}); err != nil {
		c.forget(id)
		return err
	}

	select {
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			c.mu.Lock()
			defer c.mu.Unlock()
			return c.err
		}
		if resp.Error != nil {
			if resp.Error.Code == CodeRejected {
				return &querysql.RejectedError{Reason: resp.Error.Message}
			}
			return fmt.Errorf("%s: %w", method, resp.Error)
		}
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
		return nil
	}
}

func (c *Client) send(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := fmt.Fprintf(c.w, "%s\n", data); err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	return nil
}

func (c *Client) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) readLoop() {
	defer close(c.done)
	scanner := bufio.NewScanner(c.r)
	scanner.Buffer(make([]byte, 64<<10), MaxMessageSize)

	for scanner.Scan() {
		var msg Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		id, ok := responseID(msg.ID)
		if !ok {
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[id]
		delete(c.pending, id)
		c.mu.Unlock()
		if ok {
			ch <- &msg
		}
	}

	err := scanner.Err()
	if err == nil {
		err = ErrClosed
	}
	c.mu.Lock()
	c.err = err
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()
}

// responseID converts a decoded JSON number ID back to the request ID.
func responseID(v any) (int64, bool) {
	f, ok := v.(float64)
	if !ok || f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}
