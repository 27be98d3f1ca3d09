package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/climq/internal/dataset"
	"github.com/roach88/climq/internal/querysql"
	"github.com/roach88/climq/internal/testutil"
)

// connect serves source over in-memory pipes and returns a client.
func connect(t *testing.T, source dataset.Source) *Client {
	t.Helper()
	toServer, clientOut := io.Pipe()
	clientIn, fromServer := io.Pipe()

	srv := NewServer(source, nil)
	served := make(chan error, 1)
	go func() {
		served <- srv.Serve(context.Background(), toServer, fromServer)
		fromServer.Close()
	}()

	c := NewClient(clientIn, clientOut)
	t.Cleanup(func() {
		c.Close()
		select {
		case err := <-served:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return c
}

func TestClient_Execute(t *testing.T) {
	c := connect(t, testutil.Store(t, testutil.Registry(t)))
	ctx := context.Background()

	reply, err := c.Execute(ctx, "disasters", `SELECT Year, "Drought Count", "Drought Cost" FROM disaster_records WHERE Year = 1980`)
	require.NoError(t, err)
	assert.False(t, reply.NoData)
	assert.Equal(t, "(1980, 1, 41.2)", reply.Text)

	reply, err = c.Execute(ctx, "disasters", `SELECT Year FROM disaster_records WHERE Year = 2024`)
	require.NoError(t, err)
	assert.True(t, reply.NoData)
	assert.Equal(t, dataset.NoDataText, reply.Render())
}

func TestClient_Rejected(t *testing.T) {
	c := connect(t, testutil.Store(t, testutil.Registry(t)))

	_, err := c.Execute(context.Background(), "disasters", "DROP TABLE disaster_records")
	require.Error(t, err)
	assert.True(t, querysql.IsRejected(err))
}

func TestClient_UnknownDatabase(t *testing.T) {
	c := connect(t, testutil.Store(t, testutil.Registry(t)))

	_, err := c.Tables(context.Background(), "nope")
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, InvalidParams, rerr.Code)
}

func TestClient_TablesAndSchema(t *testing.T) {
	c := connect(t, testutil.Store(t, testutil.Registry(t)))
	ctx := context.Background()

	tables, err := c.Tables(ctx, "era5")
	require.NoError(t, err)
	assert.Contains(t, tables, "india_df0")

	schema, err := c.Schema(ctx, "disasters")
	require.NoError(t, err)
	require.Len(t, schema, 1)
	assert.Equal(t, "disaster_records", schema[0].Name)
	assert.Contains(t, schema[0].Names(), "Drought Cost")
}

func TestClient_Concurrent(t *testing.T) {
	c := connect(t, testutil.Store(t, testutil.Registry(t)))
	ctx := context.Background()

	years := []string{"1980", "1981", "1982", "1983", "1984"}
	got := make([]string, len(years))
	var wg sync.WaitGroup
	for i, y := range years {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reply, err := c.Execute(ctx, "disasters", "SELECT Year FROM disaster_records WHERE Year = "+y)
			assert.NoError(t, err)
			got[i] = reply.Text
		}()
	}
	wg.Wait()

	for i, y := range years {
		assert.Equal(t, "("+y+",)", got[i])
	}
}

// blocking holds every Execute until release is closed.
type blocking struct {
	release chan struct{}
}

func (b blocking) Tables(context.Context, string) ([]string, error) { return nil, nil }

func (b blocking) Schema(context.Context, string) ([]dataset.TableSchema, error) { return nil, nil }

func (b blocking) Execute(ctx context.Context, _, _ string) (dataset.Reply, error) {
	<-b.release
	return dataset.Reply{NoData: true}, nil
}

func TestClient_ContextCancel(t *testing.T) {
	src := blocking{release: make(chan struct{})}
	c := connect(t, src)
	defer close(src.release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Execute(ctx, "x", "SELECT 1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_ServerGone(t *testing.T) {
	toServer, clientOut := io.Pipe()
	clientIn, fromServer := io.Pipe()
	go io.Copy(io.Discard, toServer)

	c := NewClient(clientIn, clientOut)
	fromServer.Close()
	<-c.done

	_, err := c.Tables(context.Background(), "co2")
	assert.True(t, errors.Is(err, ErrClosed))
	c.Close()
}

func TestServer_Protocol(t *testing.T) {
	in := strings.Join([]string{
		`not json`,
		`{"jsonrpc":"2.0","method":"tables","params":{"database":"disasters"}}`,
		`{"jsonrpc":"2.0","id":1,"method":"drop"}`,
		`{"jsonrpc":"1.0","id":2,"method":"tables"}`,
		`{"jsonrpc":"2.0","id":3,"method":"execute"}`,
		`{"jsonrpc":"2.0","id":"four","method":"tables","params":{"database":"disasters"}}`,
	}, "\n")

	var out strings.Builder
	srv := NewServer(testutil.Store(t, testutil.Registry(t)), nil)
	require.NoError(t, srv.Serve(context.Background(), strings.NewReader(in), &out))

	var msgs []Message
	sc := bufio.NewScanner(strings.NewReader(out.String()))
	for sc.Scan() {
		var m Message
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		msgs = append(msgs, m)
	}
	require.Len(t, msgs, 5)

	assert.Equal(t, ParseError, msgs[0].Error.Code)
	assert.Nil(t, msgs[0].ID)
	assert.Equal(t, MethodNotFound, msgs[1].Error.Code)
	assert.Equal(t, InvalidRequest, msgs[2].Error.Code)
	assert.Equal(t, InvalidParams, msgs[3].Error.Code)
	assert.Equal(t, "four", msgs[4].ID)
	assert.JSONEq(t, `["disaster_records"]`, string(msgs[4].Result))
}

func TestServer_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	srv := NewServer(testutil.Store(t, testutil.Registry(t)), nil)
	err := srv.Serve(ctx, strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tables","params":{"database":"disasters"}}`), io.Discard)
	assert.ErrorIs(t, err, context.Canceled)
}
