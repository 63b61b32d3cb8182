package job

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dunesync/dunesync/pkg/errors"
	"github.com/dunesync/dunesync/pkg/frame"
	"github.com/dunesync/dunesync/pkg/schema"
)

type fakeSource struct {
	frame       *frame.Frame
	validateErr error
	fetchErr    error
	closed      bool
}

func (s *fakeSource) Validate(ctx context.Context) error { return s.validateErr }

func (s *fakeSource) Fetch(ctx context.Context) (*frame.Frame, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.frame, nil
}

func (s *fakeSource) Close() { s.closed = true }

type fakeDestination struct {
	saved       *frame.Frame
	saveCalls   int
	validateErr error
	saveErr     error
}

func (d *fakeDestination) Validate(ctx context.Context) error { return d.validateErr }

func (d *fakeDestination) Save(ctx context.Context, f *frame.Frame) (int64, error) {
	d.saveCalls++
	d.saved = f
	if d.saveErr != nil {
		return 0, d.saveErr
	}
	return int64(f.RowCount()), nil
}

func testFrame(t *testing.T, rows [][]interface{}) *frame.Frame {
	t.Helper()
	f, err := frame.New([]string{"id"},
		map[string]schema.ColumnType{"id": {Kind: schema.KindBigInt}}, rows)
	require.NoError(t, err)
	return f
}

func TestDatabaseFromString(t *testing.T) {
	db, err := DatabaseFromString("postgres")
	require.NoError(t, err)
	assert.Equal(t, DatabasePostgres, db)

	db, err = DatabaseFromString("Dune")
	require.NoError(t, err)
	assert.Equal(t, DatabaseDune, db)

	_, err = DatabaseFromString("sqlite")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestRun(t *testing.T) {
	src := &fakeSource{frame: testFrame(t, [][]interface{}{{int64(1)}, {int64(2)}})}
	dst := &fakeDestination{}
	j := &Job{Name: "sync", Source: src, Destination: dst}

	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, 1, dst.saveCalls)
	assert.Equal(t, 2, dst.saved.RowCount())
}

func TestRunSkipsEmptyFrame(t *testing.T) {
	src := &fakeSource{frame: testFrame(t, nil)}
	dst := &fakeDestination{}
	j := &Job{Name: "sync", Source: src, Destination: dst}

	require.NoError(t, j.Run(context.Background()))
	assert.Zero(t, dst.saveCalls)
}

func TestRunValidationFailure(t *testing.T) {
	src := &fakeSource{validateErr: errors.New(errors.ErrorTypeQuery, "bad query")}
	dst := &fakeDestination{}
	j := &Job{Name: "sync", Source: src, Destination: dst}

	err := j.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Zero(t, dst.saveCalls)
}

func TestRunDestinationValidationFailure(t *testing.T) {
	src := &fakeSource{frame: testFrame(t, [][]interface{}{{int64(1)}})}
	dst := &fakeDestination{validateErr: errors.New(errors.ErrorTypeConfig, "no schema")}
	j := &Job{Name: "sync", Source: src, Destination: dst}

	require.Error(t, j.Run(context.Background()))
	assert.Zero(t, dst.saveCalls)
}

func TestRunFetchFailure(t *testing.T) {
	src := &fakeSource{fetchErr: errors.New(errors.ErrorTypeExecution, "query failed")}
	dst := &fakeDestination{}
	j := &Job{Name: "sync", Source: src, Destination: dst}

	err := j.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeExecution))
	assert.Zero(t, dst.saveCalls)
}

func TestRunSaveFailure(t *testing.T) {
	src := &fakeSource{frame: testFrame(t, [][]interface{}{{int64(1)}})}
	dst := &fakeDestination{saveErr: errors.New(errors.ErrorTypeQuery, "insert failed")}
	j := &Job{Name: "sync", Source: src, Destination: dst}

	err := j.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeQuery))
}

func TestClose(t *testing.T) {
	src := &fakeSource{}
	j := &Job{Name: "sync", Source: src, Destination: &fakeDestination{}}
	j.Close()
	assert.True(t, src.closed)
}

func TestString(t *testing.T) {
	assert.Equal(t, "sync", (&Job{Name: "sync"}).String())
}
