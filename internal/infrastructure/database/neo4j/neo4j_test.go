package neo4j

import (
	"context"
	"fmt"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LoreKit/internal/intelligence/lore_parser"
	"github.com/turtacn/LoreKit/internal/testutil"
	"github.com/turtacn/LoreKit/pkg/errors"
)

type MockDriver struct {
	mock.Mock
	session internalSession
}

func (m *MockDriver) VerifyConnectivity(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDriver) NewSession(ctx context.Context, config neo4j.SessionConfig) internalSession {
	m.Called(ctx, config)
	return m.session
}

func (m *MockDriver) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// fakeSession runs work against tx directly.
type fakeSession struct {
	tx     Transaction
	closed int
}

func (s *fakeSession) ExecuteRead(ctx context.Context, work TransactionWork) (any, error) {
	return work(s.tx)
}

func (s *fakeSession) Close(context.Context) error {
	s.closed++
	return nil
}

type MockTransaction struct {
	mock.Mock
}

func (m *MockTransaction) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	args := m.Called(ctx, cypher, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(Result), args.Error(1)
}

type fakeResult struct {
	records []*neo4j.Record
	pos     int
	err     error
}

func (r *fakeResult) Next(context.Context) bool {
	if r.pos >= len(r.records) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeResult) Record() *neo4j.Record {
	if r.pos == 0 {
		return nil
	}
	return r.records[r.pos-1]
}

func (r *fakeResult) Err() error { return r.err }

func entityRecord(id, name, slug, kind any) *neo4j.Record {
	return &neo4j.Record{
		Keys:   []string{"id", "name", "slug", "kind"},
		Values: []any{id, name, slug, kind},
	}
}

func newTestDirectory(t *testing.T) (*Directory, *MockTransaction, *fakeSession, *MockDriver) {
	t.Helper()
	tx := new(MockTransaction)
	session := &fakeSession{tx: tx}
	drv := &MockDriver{session: session}
	drv.On("NewSession", mock.Anything, neo4j.SessionConfig{DatabaseName: "lore", AccessMode: neo4j.AccessModeRead}).Return()
	d := newDriver(drv, "lore", testutil.NewMockLogger())
	return newDirectory(d, testutil.NewMockLogger()), tx, session, drv
}

func TestDirectory_FindByKind(t *testing.T) {
	dir, tx, session, _ := newTestDirectory(t)
	tx.On("Run", mock.Anything, cypherByKind, map[string]any{"kind": "Place", "key": "Crystal Spire"}).
		Return(&fakeResult{records: []*neo4j.Record{entityRecord("loc-1", "Crystal Spire", "crystal-spire", "Place")}}, nil)

	link, err := dir.FindByKind(context.Background(), lore_parser.Place, "Crystal Spire")
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, "loc-1", *link.ID)
	assert.Equal(t, "crystal-spire", *link.Slug)
	assert.Equal(t, "Crystal Spire", link.Name)
	assert.Equal(t, lore_parser.Place, link.Kind)
	assert.Equal(t, 1, session.closed)
	tx.AssertExpectations(t)
}

func TestDirectory_FindBySlug_CustomKind(t *testing.T) {
	dir, tx, _, _ := newTestDirectory(t)
	tx.On("Run", mock.Anything, cypherBySlug, map[string]any{"key": "ember-crown"}).
		Return(&fakeResult{records: []*neo4j.Record{entityRecord(int64(42), "Ember Crown", nil, "Relic")}}, nil)

	link, err := dir.FindBySlug(context.Background(), "ember-crown")
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, "42", *link.ID)
	assert.Equal(t, lore_parser.CustomKind("Relic"), link.Kind)
	// slug derived from the name when the node has none
	assert.Equal(t, lore_parser.ToSlug("Ember Crown"), *link.Slug)
}

func TestDirectory_FindByName_NoMatch(t *testing.T) {
	dir, tx, _, _ := newTestDirectory(t)
	tx.On("Run", mock.Anything, cypherByName, map[string]any{"kind": "Faction", "key": "iron court"}).
		Return(&fakeResult{}, nil)

	link, err := dir.FindByName(context.Background(), lore_parser.Faction, "iron court")
	require.NoError(t, err)
	assert.Nil(t, link)
}

func TestDirectory_QueryError(t *testing.T) {
	dir, tx, _, _ := newTestDirectory(t)
	tx.On("Run", mock.Anything, cypherBySlug, mock.Anything).Return(nil, fmt.Errorf("connection reset"))

	_, err := dir.FindBySlug(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDirectoryLookup))
}

func TestDirectory_ResultError(t *testing.T) {
	dir, tx, _, _ := newTestDirectory(t)
	tx.On("Run", mock.Anything, cypherBySlug, mock.Anything).Return(&fakeResult{err: fmt.Errorf("stream broke")}, nil)

	_, err := dir.FindBySlug(context.Background(), "x")
	assert.True(t, errors.IsCode(err, errors.ErrCodeDirectoryLookup))
}

func TestDirectory_BadFieldType(t *testing.T) {
	dir, tx, _, _ := newTestDirectory(t)
	tx.On("Run", mock.Anything, cypherBySlug, mock.Anything).
		Return(&fakeResult{records: []*neo4j.Record{entityRecord(3.5, "X", "x", "Place")}}, nil)

	_, err := dir.FindBySlug(context.Background(), "x")
	assert.Error(t, err)
}

func TestDriver_Ping(t *testing.T) {
	_, tx, _, drv := newTestDirectory(t)
	drv.On("VerifyConnectivity", mock.Anything).Return(nil).Once()
	tx.On("Run", mock.Anything, "RETURN 1 AS health", map[string]any(nil)).
		Return(&fakeResult{records: []*neo4j.Record{{Keys: []string{"health"}, Values: []any{int64(1)}}}}, nil)

	d := newDriver(drv, "lore", nil)
	assert.NoError(t, d.Ping(context.Background()))

	drv.On("VerifyConnectivity", mock.Anything).Return(fmt.Errorf("refused")).Once()
	err := d.Ping(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatabaseError))
}

func TestDriver_CloseOnce(t *testing.T) {
	drv := &MockDriver{}
	drv.On("Close", mock.Anything).Return(nil).Once()
	logger := testutil.NewMockLogger()
	d := newDriver(drv, "", logger)
	assert.Equal(t, "neo4j", d.database)

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	drv.AssertNumberOfCalls(t, "Close", 1)
	assert.True(t, logger.HasMessage("info", "neo4j driver closed"))
}
