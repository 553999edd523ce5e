package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const upstreamPayload = `{"price_per_floor_area_per_year":[
	{"year":2022,"count":8,"mean":4900.0,"median":4800.0,"std":NaN,"lower_bound":NaN,"upper_bound":NaN},
	{"year":2023,"count":12,"mean":5100.0,"median":5000.0,"std":400.0,"lower_bound":4250.0,"upper_bound":5750.0}
]}`

func withUpstream(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	t.Setenv("PRICING_BASE_URL", srv.URL)
	t.Setenv("PRICING_ENDPOINT", "/pricing")
	t.Setenv("CACHE_BACKEND", "memory")
	t.Setenv("RATE_LIMIT_MS", "0")
	t.Setenv("MAX_RETRIES", "1")
	t.Setenv("LOG_LEVEL", "error")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, c := range newRootCommand().Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "series", "value", "batch", "report"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestArgumentValidation(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want string
	}{
		{"value needs two args", []string{"value", "SW4 0ES"}, "accepts 2 arg(s)"},
		{"value rejects bad area", []string{"value", "SW4 0ES", "big"}, "floor area"},
		{"series needs postcode", []string{"series"}, "accepts 1 arg(s)"},
		{"batch needs input", []string{"batch"}, `required flag(s) "input" not set`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := run(t, tc.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestUnknownCacheBackend(t *testing.T) {
	withUpstream(t, func(w http.ResponseWriter, r *http.Request) {})
	t.Setenv("CACHE_BACKEND", "memcached")

	_, err := run(t, "series", "SW4 0ES")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CACHE_BACKEND")
}

func TestSeriesCommand(t *testing.T) {
	withUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(upstreamPayload))
	})

	out, err := run(t, "series", "SW4 0ES")
	require.NoError(t, err)

	var body struct {
		Source         string `json:"source"`
		Postcode       string `json:"postcode"`
		Recommendation struct {
			PricePerSqm float64 `json:"pricePerSqm"`
			Confidence  string  `json:"confidence"`
		} `json:"recommendation"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.Equal(t, "live", body.Source)
	assert.Equal(t, "SW4 0ES", body.Postcode)
	assert.Equal(t, 5000.0, body.Recommendation.PricePerSqm)
	assert.Equal(t, "high", body.Recommendation.Confidence)
}

func TestValueCommand(t *testing.T) {
	withUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(upstreamPayload))
	})

	out, err := run(t, "value", "SW4 0ES", "1000")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "465000\n"), out)
	assert.Contains(t, out, "high confidence")
}

func TestValueCommandNotAvailable(t *testing.T) {
	withUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	out, err := run(t, "value", "SW4 0ES", "1000")
	require.NoError(t, err)
	assert.Equal(t, "Not available\n", out)
}

func TestBatchCommand(t *testing.T) {
	withUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(upstreamPayload))
	})

	dir := t.TempDir()
	input := filepath.Join(dir, "properties.csv")
	output := filepath.Join(dir, "out", "valuations.csv")
	require.NoError(t, os.WriteFile(input, []byte(
		"reference,postcode,floor_area_sqft\n"+
			"P1,SW4 0ES,1000\n"+
			"P1,SW4 0ES,1000\n"+
			"P2,SW4 0ES,0\n"), 0o644))

	_, err := run(t, "batch", "--input", input, "--output", output)
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3, "header plus one row per unique reference")
	assert.True(t, strings.HasPrefix(lines[1], "P1,SW4 0ES,1000,"))
	assert.Contains(t, lines[1], ",465000,true,live,")
	assert.Contains(t, lines[2], ",false,")
}
