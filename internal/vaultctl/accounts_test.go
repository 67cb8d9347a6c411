package vaultctl

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	aliceID = "6f1c2a7e-0b3d-4c5e-9a8f-1d2e3f4a5b6c"
	tokenID = "7d6c5b4a-3f2e-4d1c-8b0a-9f8e7d6c5b4a"

	byUsernameQ = `FROM users\s+WHERE username = \$1`
	byIDQ       = `FROM users\s+WHERE id = \$1`
	tokenQ      = `FROM reset_tokens\s+WHERE token = \$1`
	keyQ        = `FROM recovery_keys\s+WHERE user_id = \$1`
)

var (
	userCols  = []string{"id", "username", "email", "password_hash", "created_at"}
	tokenCols = []string{"id", "user_id", "token", "expiry", "used", "created_at"}
	keyCols   = []string{"user_id", "key_hash", "created_at"}
)

func aliceRow(hash string) *sqlmock.Rows {
	return sqlmock.NewRows(userCols).AddRow(aliceID, "alice", "alice@example.com", hash, time.Now())
}

func tokenRow(expiry time.Time, used bool) *sqlmock.Rows {
	return sqlmock.NewRows(tokenCols).AddRow(tokenID, aliceID, "tok", expiry, used, time.Now())
}

func keyRow(raw string) *sqlmock.Rows {
	sum := sha256.Sum256([]byte(raw))
	return sqlmock.NewRows(keyCols).AddRow(aliceID, hex.EncodeToString(sum[:]), time.Now())
}

func TestRegisterCommand(t *testing.T) {
	a, out := newTestApp(t)
	mock := withMockDB(t, a)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(sqlmock.AnyArg(), "alice", "alice@example.com", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectClose()

	stubPasswords(t, "correcthorse", "correcthorse")
	require.NoError(t, a.Run(context.Background(), []string{"register", "alice", "alice@example.com"}))
	assert.Regexp(t, `^registered alice \([0-9a-f-]{36}\)$`, lastLine(out.String()))
	assert.NotContains(t, out.String(), "correcthorse")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterCommand_Rejections(t *testing.T) {
	a, _ := newTestApp(t)
	withMockDB(t, a)

	stubPasswords(t, "correcthorse", "correcthorsf")
	assert.EqualError(t, a.Run(context.Background(), []string{"register", "alice", "alice@example.com"}),
		"secrets do not match")

	stubPasswords(t, "short", "short")
	err := a.Run(context.Background(), []string{"register", "alice", "alice@example.com"})
	assert.ErrorIs(t, err, common.ErrorValidation)

	assert.ErrorIs(t, a.Run(context.Background(), []string{"register", "alice"}), ErrUsage)
}

func TestCheckToken(t *testing.T) {
	tests := []struct {
		name    string
		rows    *sqlmock.Rows
		wantErr error
	}{
		{"usable", tokenRow(time.Now().Add(time.Hour), false), nil},
		{"used", tokenRow(time.Now().Add(time.Hour), true), common.ErrTokenAlreadyUsed},
		{"expired", tokenRow(time.Now().Add(-time.Minute), false), common.ErrTokenExpired},
		{"unknown", sqlmock.NewRows(tokenCols), common.ErrorNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, out := newTestApp(t)
			mock := withMockDB(t, a)
			mock.ExpectQuery(tokenQ).WithArgs("tok").WillReturnRows(tt.rows)
			mock.ExpectClose()

			err := a.Run(context.Background(), []string{"check-token", "tok"})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "valid for user "+aliceID, lastLine(out.String()))
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRevokeToken(t *testing.T) {
	t.Run("revoked", func(t *testing.T) {
		a, out := newTestApp(t)
		mock := withMockDB(t, a)
		mock.ExpectQuery(tokenQ).WithArgs("tok").WillReturnRows(tokenRow(time.Now().Add(time.Hour), false))
		mock.ExpectExec(`UPDATE reset_tokens SET used = TRUE`).WithArgs(tokenID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectClose()

		require.NoError(t, a.Run(context.Background(), []string{"revoke-token", "tok"}))
		assert.Equal(t, "token revoked", lastLine(out.String()))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lost race", func(t *testing.T) {
		a, _ := newTestApp(t)
		mock := withMockDB(t, a)
		mock.ExpectQuery(tokenQ).WithArgs("tok").WillReturnRows(tokenRow(time.Now().Add(time.Hour), false))
		mock.ExpectExec(`UPDATE reset_tokens SET used = TRUE`).WithArgs(tokenID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectClose()

		err := a.Run(context.Background(), []string{"revoke-token", "tok"})
		assert.ErrorIs(t, err, common.ErrTokenAlreadyUsed)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestResetPasswordCommand(t *testing.T) {
	a, out := newTestApp(t)
	mock := withMockDB(t, a)
	expiry := time.Now().Add(time.Hour)

	mock.ExpectQuery(tokenQ).WithArgs("tok").WillReturnRows(tokenRow(expiry, false))
	mock.ExpectQuery(tokenQ).WithArgs("tok").WillReturnRows(tokenRow(expiry, false))
	mock.ExpectBegin()
	mock.ExpectQuery(tokenQ + `\s*FOR UPDATE`).WithArgs("tok").WillReturnRows(tokenRow(expiry, false))
	mock.ExpectExec(`UPDATE users SET password_hash = \$1\s+WHERE id = \$2$`).
		WithArgs(sqlmock.AnyArg(), aliceID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE reset_tokens SET used = TRUE`).WithArgs(tokenID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectClose()

	stubPasswords(t, "batterystaple", "batterystaple")
	require.NoError(t, a.Run(context.Background(), []string{"reset-password", "tok"}))
	assert.Equal(t, "master secret updated", lastLine(out.String()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResetPasswordCommand_DeadTokenSkipsPrompt(t *testing.T) {
	a, out := newTestApp(t)
	mock := withMockDB(t, a)
	mock.ExpectQuery(tokenQ).WithArgs("tok").WillReturnRows(tokenRow(time.Now().Add(-time.Minute), false))
	mock.ExpectClose()

	stubPasswords(t)
	err := a.Run(context.Background(), []string{"reset-password", "tok"})
	assert.ErrorIs(t, err, common.ErrTokenExpired)
	assert.NotContains(t, out.String(), "New master secret")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckRecoveryKey(t *testing.T) {
	tests := []struct {
		answer string
		want   string
	}{
		{"the-key", "match"},
		{"not-the-key", "no match"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			a, out := newTestApp(t)
			mock := withMockDB(t, a)
			mock.ExpectQuery(byUsernameQ).WithArgs("alice").WillReturnRows(aliceRow("h"))
			mock.ExpectQuery(keyQ).WithArgs(aliceID).WillReturnRows(keyRow("the-key"))
			mock.ExpectClose()

			stubPasswords(t, tt.answer)
			require.NoError(t, a.Run(context.Background(), []string{"check-recovery-key", "alice"}))
			assert.Equal(t, tt.want, lastLine(out.String()))
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRecoverCommand(t *testing.T) {
	a, out := newTestApp(t)
	mock := withMockDB(t, a)

	mock.ExpectQuery(byUsernameQ).WithArgs("alice").WillReturnRows(aliceRow("old-hash"))
	mock.ExpectQuery(keyQ).WithArgs(aliceID).WillReturnRows(keyRow("the-key"))
	mock.ExpectQuery(byIDQ).WithArgs(aliceID).WillReturnRows(aliceRow("old-hash"))
	mock.ExpectQuery(keyQ).WithArgs(aliceID).WillReturnRows(keyRow("the-key"))
	mock.ExpectExec(`UPDATE users SET password_hash = \$1\s+WHERE id = \$2 AND password_hash = \$3`).
		WithArgs(sqlmock.AnyArg(), aliceID, "old-hash").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectClose()

	stubPasswords(t, "the-key", "newsecret!", "newsecret!")
	require.NoError(t, a.Run(context.Background(), []string{"recover", "alice"}))
	assert.Equal(t, "master secret updated", lastLine(out.String()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecoverCommand_WrongKey(t *testing.T) {
	a, out := newTestApp(t)
	mock := withMockDB(t, a)

	mock.ExpectQuery(byUsernameQ).WithArgs("alice").WillReturnRows(aliceRow("old-hash"))
	mock.ExpectQuery(keyQ).WithArgs(aliceID).WillReturnRows(keyRow("the-key"))
	mock.ExpectClose()

	stubPasswords(t, "guess")
	err := a.Run(context.Background(), []string{"recover", "alice"})
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	assert.NotContains(t, out.String(), "New master secret")
	require.NoError(t, mock.ExpectationsWereMet())
}
