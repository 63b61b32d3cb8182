// Package materialize converts a wire-format Dune query result into a typed
// frame: every column gets a resolved ColumnType, varbinary cells are decoded
// from hex interchange strings to raw bytes, and unrecognized columns are
// serialized to canonical JSON text.
package materialize

import (
	"encoding/hex"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/dunesync/dunesync/pkg/clients/dune"
	"github.com/dunesync/dunesync/pkg/frame"
	"github.com/dunesync/dunesync/pkg/logger"
	"github.com/dunesync/dunesync/pkg/schema"
)

// hexPrefix is the interchange convention for binary cells on the wire.
const hexPrefix = "0x"

// varbinaryMarker is the Dune result type string for raw binary columns.
const varbinaryMarker = "varbinary"

// Materialize turns an execution result into a Frame. It is tolerant of
// per-column anomalies: unparsable parametrized types fall back, unknown
// types are serialized as JSON, and a malformed cell never aborts the batch.
// Zero rows still yields a frame carrying the full type map, since table
// creation downstream needs it.
func Materialize(result *dune.ExecutionResult) (*frame.Frame, error) {
	mapper := schema.NewMapper()
	meta := result.Metadata

	types := make(map[string]schema.ColumnType, len(meta.ColumnNames))
	binaryCols := make(map[int]bool)
	opaqueCols := make(map[int]bool)
	for i, name := range meta.ColumnNames {
		typeString := ""
		if i < len(meta.ColumnTypes) {
			typeString = meta.ColumnTypes[i]
		}
		t := mapper.Resolve(name, typeString)
		types[name] = t
		if typeString == varbinaryMarker {
			binaryCols[i] = true
		} else if t.Kind == schema.KindJSON {
			opaqueCols[i] = true
		}
	}

	rows := make([][]interface{}, 0, len(result.Rows))
	for _, record := range result.Rows {
		row := make([]interface{}, len(meta.ColumnNames))
		for i, name := range meta.ColumnNames {
			cell := record[name] // missing keys stay nil
			switch {
			case cell == nil:
			case binaryCols[i]:
				row[i] = decodeBinaryCell(name, cell)
				continue
			case opaqueCols[i]:
				row[i] = encodeOpaqueCell(name, cell)
				continue
			}
			row[i] = cell
		}
		rows = append(rows, row)
	}

	return frame.New(meta.ColumnNames, types, rows)
}

// decodeBinaryCell converts a "0x"-prefixed hex string into raw bytes. Cells
// that are not valid hex interchange pass through unchanged with a warning.
func decodeBinaryCell(column string, cell interface{}) interface{} {
	s, ok := cell.(string)
	if !ok {
		logger.Warn("varbinary cell is not a string, passing through",
			zap.String("column", column))
		return cell
	}
	decoded, err := DecodeHex(s)
	if err != nil {
		logger.Warn("failed to decode varbinary cell, passing through",
			zap.String("column", column), zap.Error(err))
		return cell
	}
	return decoded
}

// encodeOpaqueCell serializes an arbitrary nested value to JSON text.
func encodeOpaqueCell(column string, cell interface{}) interface{} {
	data, err := json.Marshal(cell)
	if err != nil {
		logger.Warn("failed to serialize opaque cell, passing through",
			zap.String("column", column), zap.Error(err))
		return cell
	}
	return string(data)
}

// DecodeHex decodes a "0x"-prefixed hex interchange string to raw bytes.
func DecodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, hexPrefix))
}

// EncodeHex encodes raw bytes as a "0x"-prefixed hex interchange string.
func EncodeHex(b []byte) string {
	return hexPrefix + hex.EncodeToString(b)
}
