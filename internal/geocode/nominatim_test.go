package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/climq/internal/ir"
)

func server(t *testing.T, h http.HandlerFunc) *Nominatim {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL, UserAgent: "climq-test", RequestsPerSecond: 1000})
}

func TestLookup(t *testing.T) {
	n := server(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Pokhara", r.URL.Query().Get("q"))
		assert.Equal(t, "np,in", r.URL.Query().Get("countrycodes"))
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.Equal(t, "climq-test", r.Header.Get("User-Agent"))
		w.Write([]byte(`[{"name":"Pokhara","display_name":"Pokhara, Kaski, Nepal","category":"place","type":"city","addresstype":"city","address":{"country_code":"np"}}]`))
	})

	p, err := n.Lookup(context.Background(), "Pokhara", []string{"NP", "IN"})
	require.NoError(t, err)
	assert.Equal(t, &ir.Place{Name: "Pokhara", Class: "place", Type: "city", AddressType: "city", CountryCode: "np"}, p)
}

func TestLookup_NameFromDisplayName(t *testing.T) {
	n := server(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[{"display_name":"Lalitpur, Bagmati, Nepal","class":"boundary","type":"administrative","address":{"country_code":"np"}}]`))
	})

	p, err := n.Lookup(context.Background(), "Lalitpur", nil)
	require.NoError(t, err)
	assert.Equal(t, "Lalitpur", p.Name)
	assert.Equal(t, "boundary", p.Class)
}

func TestLookup_NoMatch(t *testing.T) {
	n := server(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[]`))
	})

	p, err := n.Lookup(context.Background(), "Atlantis", nil)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestLookup_Errors(t *testing.T) {
	tests := []struct {
		name string
		h    http.HandlerFunc
		want string
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}, "nominatim upstream 503: overloaded"},
		{"bad json", func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{`))
		}, "nominatim decode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := server(t, tt.h).Lookup(context.Background(), "Delhi", nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLookup_RateLimited(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()
	n := New(Options{BaseURL: srv.URL, RequestsPerSecond: 0.5})

	_, err := n.Lookup(context.Background(), "a", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = n.Lookup(ctx, "b", nil)
	require.Error(t, err, "second request must wait for the limiter")
	assert.Equal(t, 1, calls)
}
