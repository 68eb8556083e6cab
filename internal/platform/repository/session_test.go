package repository

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/fleetcompliance/platform/pkg/errors"
	"github.com/fleetcompliance/platform/pkg/testutil"
)

const sessionTestSearchPath = "public"
const sessionTestTenantID = "77777777-7777-7777-7777-777777777777"

func sessionColumnNames() []string {
	return []string{"id", "tenant_id", "user_id", "refresh_token_hash", "csrf_token", "expires_at", "revoked_at", "created_at"}
}

func TestSessionRepository_CreateWithID(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewSessionRepository(mockDB.Database(sessionTestSearchPath))
	ctx := testutil.WithTestTenantValues(testutil.DefaultTestContext(t), sessionTestTenantID, "acme")

	mockDB.ExpectTenantTxBegin(sessionTestSearchPath, sessionTestTenantID)
	mockDB.Mock.ExpectQuery(`INSERT INTO sessions`).
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))
	mockDB.ExpectCommit()

	session, err := repo.CreateWithID(ctx, "sess-1", sessionTestTenantID, "user-1", "refresh-token", "csrf-token", time.Now().Add(time.Hour))

	require.NoError(t, err)
	assert.Equal(t, "sess-1", session.ID)
	assert.NotZero(t, session.CreatedAt)
	mockDB.ExpectationsWereMet(t)
}

func TestSessionRepository_GetByRefreshToken_NotFound(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewSessionRepository(mockDB.Database(sessionTestSearchPath))
	ctx := testutil.WithTestTenantValues(testutil.DefaultTestContext(t), sessionTestTenantID, "acme")

	mockDB.ExpectTenantTxBegin(sessionTestSearchPath, sessionTestTenantID)
	mockDB.Mock.ExpectQuery(`SELECT .+ FROM sessions`).
		WillReturnRows(testutil.MockRows(sessionColumnNames()...))
	mockDB.ExpectRollback()

	_, err := repo.GetByRefreshToken(ctx, sessionTestTenantID, "missing-token")

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	mockDB.ExpectationsWereMet(t)
}

func TestSessionRepository_UpdateRefreshTokenHash(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewSessionRepository(mockDB.Database(sessionTestSearchPath))
	ctx := testutil.WithTestTenantValues(testutil.DefaultTestContext(t), sessionTestTenantID, "acme")

	mockDB.ExpectTenantTxBegin(sessionTestSearchPath, sessionTestTenantID)
	mockDB.Mock.ExpectExec(`UPDATE sessions SET refresh_token_hash`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	err := repo.UpdateRefreshTokenHash(ctx, sessionTestTenantID, "sess-1", "new-refresh", "new-csrf")

	require.NoError(t, err)
	mockDB.ExpectationsWereMet(t)
}

func TestSessionRepository_RevokeByRefreshToken(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewSessionRepository(mockDB.Database(sessionTestSearchPath))
	ctx := testutil.WithTestTenantValues(testutil.DefaultTestContext(t), sessionTestTenantID, "acme")

	mockDB.ExpectTenantTxBegin(sessionTestSearchPath, sessionTestTenantID)
	mockDB.Mock.ExpectExec(`UPDATE sessions SET revoked_at = NOW\(\) WHERE refresh_token_hash`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	err := repo.RevokeByRefreshToken(ctx, sessionTestTenantID, "refresh-token")

	require.NoError(t, err)
	mockDB.ExpectationsWereMet(t)
}
