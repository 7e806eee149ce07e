package repositories

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// fragmentMatcher checks that every "~"-separated fragment of the expectation
// appears in the generated SQL, regardless of column order.
var fragmentMatcher = sqlmock.QueryMatcherFunc(func(expectedSQL, actualSQL string) error {
	for _, frag := range strings.Split(expectedSQL, "~") {
		if !strings.Contains(actualSQL, frag) {
			return fmt.Errorf("SQL %q missing fragment %q", actualSQL, frag)
		}
	}
	return nil
})

func newMockRepo(t *testing.T) (UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(fragmentMatcher))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 conn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return NewUserRepository(db), mock
}

func TestResetExpiredPlansClearsEveryCounter(t *testing.T) {
	repo, mock := newMockRepo(t)

	// Expiry must wipe usage counters, creation counters and the rollover
	// clocks, and match the exact expiry instant.
	mock.ExpectExec(`UPDATE "users" SET` +
		`~"transcriptions_used_count"=` +
		`~"transcription_minutes_used"=` +
		`~"agent_uses_used"=` +
		`~"assistant_uses_used"=` +
		`~"agents_created_count"=` +
		`~"assistants_created_count"=` +
		`~"last_agent_creation_reset"=` +
		`~"last_assistant_creation_reset"=` +
		`~"plan_id"=` +
		`~"plan_expires_at"=` +
		`~plan_expires_at <= `).
		WillReturnResult(sqlmock.NewResult(0, 2))

	affected, err := repo.ResetExpiredPlans(context.Background(), time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 2, affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetExpiredPlansNoMatches(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE "users" SET~plan_expires_at <= `).
		WillReturnResult(sqlmock.NewResult(0, 0))

	affected, err := repo.ResetExpiredPlans(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}
