// Package dune implements the upload destination: a frame is pushed to Dune
// Analytics by creating (or re-creating) a namespaced table from the frame's
// column types and inserting the rows as CSV.
package dune

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	duneapi "github.com/dunesync/dunesync/pkg/clients/dune"
	"github.com/dunesync/dunesync/pkg/connector/core"
	"github.com/dunesync/dunesync/pkg/errors"
	"github.com/dunesync/dunesync/pkg/frame"
	"github.com/dunesync/dunesync/pkg/logger"
	"github.com/dunesync/dunesync/pkg/materialize"
)

// Destination uploads frames to a Dune table.
type Destination struct {
	client    *duneapi.Client
	namespace string
	tableName string
	log       *zap.Logger
}

// NewDestination creates a Dune destination. tableName must be addressed as
// "namespace.table"; the upload API has no default namespace, so a missing
// separator is a configuration error.
func NewDestination(apiKey, tableName string, opts ...duneapi.Option) (*Destination, error) {
	namespace, table, found := strings.Cut(tableName, ".")
	if !found || namespace == "" || table == "" {
		return nil, errors.Newf(errors.ErrorTypeConfig,
			"dune destination table must be addressed as namespace.table, got %q", tableName)
	}
	return &Destination{
		client:    duneapi.NewClient(apiKey, opts...),
		namespace: namespace,
		tableName: table,
		log: logger.With(
			zap.String("destination", "dune"),
			zap.String("table", namespace+"."+table)),
	}, nil
}

var _ core.Destination = (*Destination)(nil)

// Validate implements core.Destination. Table existence is not probed: the
// create endpoint is idempotent for our purposes and runs on every save.
func (d *Destination) Validate(ctx context.Context) error {
	return nil
}

// Save creates the table from the frame's column types and uploads the rows
// as CSV. Binary cells are re-encoded to "0x"-hex for interchange.
func (d *Destination) Save(ctx context.Context, f *frame.Frame) (int64, error) {
	if f.IsEmpty() {
		d.log.Warn("frame is empty, skipping upload")
		return 0, nil
	}

	columns := make([]duneapi.TableColumn, 0, len(f.Columns()))
	for _, name := range f.Columns() {
		t, _ := f.Type(name)
		columns = append(columns, duneapi.TableColumn{
			Name:     name,
			Type:     t.DuneType(),
			Nullable: true,
		})
	}
	if err := d.client.CreateTable(ctx, &duneapi.CreateTableRequest{
		Namespace: d.namespace,
		TableName: d.tableName,
		Schema:    columns,
	}); err != nil {
		return 0, err
	}

	data, err := encodeCSV(f)
	if err != nil {
		return 0, err
	}
	resp, err := d.client.InsertCSV(ctx, d.namespace, d.tableName, data)
	if err != nil {
		return 0, err
	}
	d.log.Info("uploaded frame", zap.Int("rows_written", resp.RowsWritten))
	return int64(resp.RowsWritten), nil
}

// encodeCSV renders the frame with a header row.
func encodeCSV(f *frame.Frame) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(f.Columns()); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to encode CSV header")
	}
	record := make([]string, len(f.Columns()))
	for _, row := range f.Rows() {
		for i, cell := range row {
			record[i] = formatCell(cell)
		}
		if err := w.Write(record); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to encode CSV row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to encode CSV")
	}
	return buf.Bytes(), nil
}

// formatCell renders a cell as CSV text. Nil becomes the empty field.
func formatCell(cell interface{}) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return materialize.EncodeHex(v)
	case json.Number:
		return v.String()
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	default:
		return fmt.Sprint(v)
	}
}
