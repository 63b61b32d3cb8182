package dune

// Execution states reported by the status and results endpoints.
const (
	StatePending   = "QUERY_STATE_PENDING"
	StateExecuting = "QUERY_STATE_EXECUTING"
	StateCompleted = "QUERY_STATE_COMPLETED"
	StateFailed    = "QUERY_STATE_FAILED"
	StateCancelled = "QUERY_STATE_CANCELLED"
	StateExpired   = "QUERY_STATE_EXPIRED"
)

// IsTerminal reports whether an execution state will not change again.
func IsTerminal(state string) bool {
	switch state {
	case StateCompleted, StateFailed, StateCancelled, StateExpired:
		return true
	}
	return false
}

// ExecuteResponse is the response of the execute-query endpoint.
type ExecuteResponse struct {
	ExecutionID string `json:"execution_id"`
	State       string `json:"state"`
}

// StatusResponse is the response of the execution-status endpoint.
type StatusResponse struct {
	ExecutionID string `json:"execution_id"`
	QueryID     int    `json:"query_id"`
	State       string `json:"state"`
}

// ResultMetadata describes the shape of a completed execution's result set.
type ResultMetadata struct {
	ColumnNames []string `json:"column_names"`
	ColumnTypes []string `json:"column_types"`
	RowCount    int      `json:"row_count"`
	TotalRows   int      `json:"total_row_count"`
}

// ExecutionResult carries the rows and metadata of a completed execution.
// Binary cells arrive as "0x"-prefixed hex strings.
type ExecutionResult struct {
	Rows     []map[string]interface{} `json:"rows"`
	Metadata ResultMetadata           `json:"metadata"`
}

// ResultsResponse is the response of the execution-results endpoint. Result
// is nil when the execution reached a terminal state without producing one.
type ResultsResponse struct {
	ExecutionID string           `json:"execution_id"`
	QueryID     int              `json:"query_id"`
	State       string           `json:"state"`
	Error       *ExecutionError  `json:"error,omitempty"`
	Result      *ExecutionResult `json:"result,omitempty"`
}

// ExecutionError is the error detail attached to a failed execution.
type ExecutionError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// TableColumn is one column of a table-creation schema.
type TableColumn struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// CreateTableRequest is the body of the table-creation endpoint.
type CreateTableRequest struct {
	Namespace string        `json:"namespace"`
	TableName string        `json:"table_name"`
	Schema    []TableColumn `json:"schema"`
	IsPrivate bool          `json:"is_private"`
}

// InsertResponse is the response of the CSV-insert endpoint.
type InsertResponse struct {
	RowsWritten  int `json:"rows_written"`
	BytesWritten int `json:"bytes_written"`
}
