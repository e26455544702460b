package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLiteStoreWithDB(db), mock
}

func TestSQLiteCreateCall(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO calls")).
		WithArgs("call-1", "contact-1", "campaign-1", "+15550199", "+15550100", "", "pending", created).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.CreateCall(context.Background(), &Call{
		ID:         "call-1",
		ContactID:  "contact-1",
		CampaignID: "campaign-1",
		ToNumber:   "+15550199",
		FromNumber: "+15550100",
		Status:     StatusPending,
		CreatedAt:  created,
	})
	if err != nil {
		t.Fatalf("create call: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSQLiteCreateCallFillsDefaults(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO calls")).
		WithArgs(sqlmock.AnyArg(), "", "", "+15550199", "", "", "pending", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	call := &Call{ToNumber: "+15550199"}
	if err := store.CreateCall(context.Background(), call); err != nil {
		t.Fatalf("create call: %v", err)
	}
	if call.ID == "" {
		t.Error("ID not generated")
	}
	if call.CreatedAt.IsZero() {
		t.Error("CreatedAt not defaulted")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSQLiteGetCallNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, contact_id, campaign_id")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := store.GetCall(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteGetCall(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	answered := created.Add(10 * time.Second)

	cols := []string{
		"id", "contact_id", "campaign_id", "to_number", "from_number", "provider_call_id",
		"status", "created_at", "answered_at", "ended_at", "duration_seconds",
		"summary", "outcome", "sentiment_score", "end_reason",
	}
	mock.ExpectQuery(regexp.QuoteMeta("FROM calls WHERE id = ?")).
		WithArgs("call-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"call-1", "contact-1", "campaign-1", "+15550199", "+15550100", "CA123",
			"in_progress", created, answered, nil, 0,
			"", "", 0.0, "",
		))

	call, err := store.GetCall(context.Background(), "call-1")
	if err != nil {
		t.Fatalf("get call: %v", err)
	}
	if call.Status != StatusInProgress {
		t.Errorf("status = %s", call.Status)
	}
	if call.AnsweredAt == nil || !call.AnsweredAt.Equal(answered) {
		t.Errorf("answered at = %v", call.AnsweredAt)
	}
	if call.EndedAt != nil {
		t.Errorf("ended at = %v, want nil", call.EndedAt)
	}
}

func TestSQLiteCompleteCall(t *testing.T) {
	store, mock := newMockStore(t)
	ended := time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE calls SET status = ?, ended_at = ?")).
		WithArgs("completed", ended, 300, "resolved the request", "successful", 0.8, "completed", "call-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.CompleteCall(context.Background(), "call-1", Completion{
		EndedAt:         ended,
		DurationSeconds: 300,
		Summary:         "resolved the request",
		Outcome:         "successful",
		SentimentScore:  0.8,
		EndReason:       "completed",
	})
	if err != nil {
		t.Fatalf("complete call: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSQLiteCompleteCallUnknownID(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE calls SET status = ?, ended_at = ?")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.CompleteCall(context.Background(), "ghost", Completion{EndedAt: time.Now()})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteAppendAndListCallLogs(t *testing.T) {
	store, mock := newMockStore(t)
	ts := time.Date(2025, 6, 1, 12, 0, 5, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO call_logs")).
		WithArgs("log-1", "call-1", 1, "greeting", "outbound", "Hello!", 0.0, "friendly", "", ts).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.AppendCallLog(context.Background(), &CallLog{
		ID:        "log-1",
		CallID:    "call-1",
		Sequence:  1,
		EventType: "greeting",
		Direction: "outbound",
		Content:   "Hello!",
		Emotion:   "friendly",
		Timestamp: ts,
	})
	if err != nil {
		t.Fatalf("append log: %v", err)
	}

	cols := []string{"id", "call_id", "sequence", "event_type", "direction", "content", "confidence", "emotion", "intent", "timestamp"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM call_logs WHERE call_id = ? ORDER BY sequence ASC")).
		WithArgs("call-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("log-1", "call-1", 1, "greeting", "outbound", "Hello!", 0.0, "friendly", "", ts).
			AddRow("log-2", "call-1", 2, "speech", "inbound", "hi", 0.93, "", "greeting", ts.Add(time.Second)))

	logs, err := store.ListCallLogs(context.Background(), "call-1")
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("logs = %d, want 2", len(logs))
	}
	if logs[1].Intent != "greeting" || logs[1].Confidence != 0.93 {
		t.Errorf("second log = %+v", logs[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSQLiteUpdateCallStatusMergesDelta(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	cols := []string{
		"id", "contact_id", "campaign_id", "to_number", "from_number", "provider_call_id",
		"status", "created_at", "answered_at", "ended_at", "duration_seconds",
		"summary", "outcome", "sentiment_score", "end_reason",
	}
	mock.ExpectQuery(regexp.QuoteMeta("FROM calls WHERE id = ?")).
		WithArgs("call-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"call-1", "", "", "+15550199", "", "CA123",
			"initiated", created, nil, nil, 0, "", "", 0.0, ""))

	status := StatusInProgress
	answered := created.Add(12 * time.Second)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE calls SET status = ?, provider_call_id = ?, answered_at = ?")).
		WithArgs("in_progress", "CA123", answered, "call-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpdateCallStatus(context.Background(), "call-1", StatusDelta{
		Status:     &status,
		AnsweredAt: &answered,
	})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSQLiteContactsAndCampaigns(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO contacts")).
		WithArgs("contact-1", "Jordan", "Lee", "+15550199", "jordan@example.com").
		WillReturnResult(sqlmock.NewResult(1, 1))
	err := store.CreateContact(context.Background(), &Contact{
		ID: "contact-1", FirstName: "Jordan", LastName: "Lee",
		PhoneNumber: "+15550199", Email: "jordan@example.com",
	})
	if err != nil {
		t.Fatalf("create contact: %v", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta("FROM contacts WHERE id = ?")).
		WithArgs("contact-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "first_name", "last_name", "phone_number", "email"}).
			AddRow("contact-1", "Jordan", "Lee", "+15550199", "jordan@example.com"))
	contact, err := store.GetContact(context.Background(), "contact-1")
	if err != nil {
		t.Fatalf("get contact: %v", err)
	}
	if contact.FirstName != "Jordan" {
		t.Errorf("contact = %+v", contact)
	}

	mock.ExpectQuery(regexp.QuoteMeta("FROM campaigns WHERE id = ?")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	if _, err := store.GetCampaign(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
