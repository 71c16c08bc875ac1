package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	msgmodel "Matcha/module/chat/model"
	note "Matcha/module/notification/model"
	user "Matcha/module/user/model"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

// ===== presence =====

func TestSetPresence(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(sqlSetPresence).
		WithArgs(int64(7), true, at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(sqlSetPresence).
		WithArgs(int64(7), false, at).
		WillReturnError(errors.New("conn reset"))

	s := NewPresenceStore(mock)
	require.NoError(t, s.SetPresence(context.Background(), 7, true, at))
	err := s.SetPresence(context.Background(), 7, false, at)
	assert.ErrorContains(t, err, "user=7")
}

func TestPresenceLookup(t *testing.T) {
	mock := newMock(t)
	seen := at
	mock.ExpectQuery(sqlGetPresence).
		WithArgs([]int64{1, 2, 3}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "is_online", "last_online"}).
			AddRow(int64(1), true, &seen).
			AddRow(int64(3), false, &seen))

	s := NewPresenceStore(mock)
	got, err := s.Presence(context.Background(), []user.UserID{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, got, 2, "unknown ids are left out")
	assert.Equal(t, user.StatusOnline, got[1].Status())
	assert.Equal(t, user.StatusOffline, got[3].Status())
	assert.Equal(t, user.UserID(3), got[3].UserID)
}

func TestPresenceLookupEmptySkipsQuery(t *testing.T) {
	mock := newMock(t)
	got, err := NewPresenceStore(mock).Presence(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMarkStaleOffline(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(sqlReapPresence).
		WithArgs(at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 4))

	n, err := NewPresenceStore(mock).MarkStaleOffline(context.Background(), at)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}

// ===== notifications =====

func TestInsertNotificationFillsIDAndTime(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(sqlInsertNotification).
		WithArgs(int64(5), "like", "ana liked you").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(42), at))

	n := &note.Notification{UserID: 5, Type: "like", Message: "ana liked you"}
	require.NoError(t, NewNotificationStore(mock).Insert(context.Background(), n))
	assert.EqualValues(t, 42, n.ID)
	assert.Equal(t, at, n.CreatedAt)
}

func TestListNotifications(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(sqlListNotifications).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "type", "message", "created_at"}).
			AddRow(int64(2), "match", "it's a match", at).
			AddRow(int64(1), "like", "ana liked you", at.Add(-time.Hour)))

	list, err := NewNotificationStore(mock).ListByUser(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "match", list[0].Type)
	assert.Equal(t, user.UserID(5), list[1].UserID)
}

func TestListNotificationsEmptyIsNotNil(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(sqlListNotifications).
		WithArgs(int64(9)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "type", "message", "created_at"}))

	list, err := NewNotificationStore(mock).ListByUser(context.Background(), 9)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestDeleteNotificationsByType(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(sqlDeleteNotifications).
		WithArgs(int64(5), "like").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := NewNotificationStore(mock).DeleteByType(context.Background(), 5, "like")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

// ===== messages =====

func TestSaveMessage(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(sqlInsertMessage).
		WithArgs(int64(1), int64(2), "hi", at).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))

	m := &msgmodel.Message{SenderID: 1, ReceiverID: 2, Content: "hi", Timestamp: at}
	require.NoError(t, NewMessageStore(mock).Save(context.Background(), m))
	assert.EqualValues(t, 11, m.ID)
}

func TestConversation(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(sqlConversation).
		WithArgs(int64(1), int64(2), 20).
		WillReturnRows(pgxmock.NewRows([]string{"id", "sender_id", "receiver_id", "message", "timestamp"}).
			AddRow(int64(12), int64(2), int64(1), "hey", at).
			AddRow(int64(11), int64(1), int64(2), "hi", at.Add(-time.Minute)))

	list, err := NewMessageStore(mock).Conversation(context.Background(), 1, 2, 20)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, user.UserID(2), list[0].SenderID)
	assert.Equal(t, user.UserID(1), list[0].ReceiverID)
	assert.Equal(t, "hi", list[1].Content)
}

func TestConversationQueryError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(sqlConversation).
		WithArgs(int64(1), int64(2), 20).
		WillReturnError(errors.New("timeout"))

	_, err := NewMessageStore(mock).Conversation(context.Background(), 1, 2, 20)
	assert.ErrorContains(t, err, "query conversation")
}

// ===== schema =====

func TestMigrateRunsEveryStatementInOrder(t *testing.T) {
	mock := newMock(t)
	for _, stmt := range migrations {
		mock.ExpectExec(stmt).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}
	require.NoError(t, Migrate(context.Background(), mock))
}

func TestMigrateStopsOnFailure(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(migrations[0]).WillReturnError(errors.New("permission denied"))

	err := Migrate(context.Background(), mock)
	assert.ErrorContains(t, err, "migration 0")
}
