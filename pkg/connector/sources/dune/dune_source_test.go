package dune

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	duneapi "github.com/dunesync/dunesync/pkg/clients/dune"
	"github.com/dunesync/dunesync/pkg/errors"
	"github.com/dunesync/dunesync/pkg/schema"
)

func TestNewSourceInvalidQueryID(t *testing.T) {
	_, err := NewSource(Config{APIKey: "k", QueryID: 0})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/query/99/execute":
			writeJSON(t, w, duneapi.ExecuteResponse{ExecutionID: "e1", State: duneapi.StateCompleted})
		case "/execution/e1/results":
			writeJSON(t, w, duneapi.ResultsResponse{
				ExecutionID: "e1",
				State:       duneapi.StateCompleted,
				Result: &duneapi.ExecutionResult{
					Rows: []map[string]interface{}{
						{"block_number": 20849352, "tx_hash": "0x5f0b"},
					},
					Metadata: duneapi.ResultMetadata{
						ColumnNames: []string{"block_number", "tx_hash"},
						ColumnTypes: []string{"bigint", "varbinary"},
					},
				},
			})
		default:
			t.Errorf("unexpected request: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	src, err := NewSource(Config{
		APIKey:        "k",
		QueryID:       99,
		PollFrequency: 10 * time.Millisecond,
	}, duneapi.WithBaseURL(server.URL))
	require.NoError(t, err)
	require.NoError(t, src.Validate(context.Background()))

	f, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"block_number", "tx_hash"}, f.Columns())
	blockType, ok := f.Type("block_number")
	require.True(t, ok)
	assert.Equal(t, schema.KindBigInt, blockType.Kind)
	hashType, ok := f.Type("tx_hash")
	require.True(t, ok)
	assert.Equal(t, schema.KindBinary, hashType.Kind)
	require.Equal(t, 1, f.RowCount())
	assert.Equal(t, []byte{0x5f, 0x0b}, f.Rows()[0][1])
}

func TestFetchNoResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/query/99/execute":
			writeJSON(t, w, duneapi.ExecuteResponse{ExecutionID: "e1", State: duneapi.StateCompleted})
		case "/execution/e1/results":
			writeJSON(t, w, duneapi.ResultsResponse{
				ExecutionID: "e1",
				State:       duneapi.StateCompleted,
			})
		default:
			t.Errorf("unexpected request: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	src, err := NewSource(Config{APIKey: "k", QueryID: 99, PollFrequency: 10 * time.Millisecond},
		duneapi.WithBaseURL(server.URL))
	require.NoError(t, err)

	_, err = src.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeExecution))
	assert.Contains(t, err.Error(), "without a result")
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}
