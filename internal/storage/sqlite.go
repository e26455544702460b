package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a local SQLite database using the
// pure-Go modernc.org/sqlite driver.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS contacts (
	id TEXT PRIMARY KEY,
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT '',
	phone_number TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS campaigns (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	type TEXT NOT NULL DEFAULT 'sales',
	script TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS calls (
	id TEXT PRIMARY KEY,
	contact_id TEXT NOT NULL DEFAULT '',
	campaign_id TEXT NOT NULL DEFAULT '',
	to_number TEXT NOT NULL,
	from_number TEXT NOT NULL,
	provider_call_id TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	answered_at TIMESTAMP,
	ended_at TIMESTAMP,
	duration_seconds INTEGER NOT NULL DEFAULT 0,
	summary TEXT NOT NULL DEFAULT '',
	outcome TEXT NOT NULL DEFAULT '',
	sentiment_score REAL NOT NULL DEFAULT 0,
	end_reason TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS call_logs (
	id TEXT PRIMARY KEY,
	call_id TEXT NOT NULL,
	sequence INTEGER NOT NULL,
	event_type TEXT NOT NULL,
	direction TEXT NOT NULL,
	content TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 0,
	emotion TEXT NOT NULL DEFAULT '',
	intent TEXT NOT NULL DEFAULT '',
	timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_call_logs_call_id ON call_logs(call_id, sequence);
CREATE INDEX IF NOT EXISTS idx_calls_status ON calls(status);
`

// NewSQLiteStore opens (creating if needed) the database at path and
// ensures the schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to open database: %w", err)
	}

	// SQLite handles one writer at a time; serialize access at the pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewSQLiteStoreWithDB wraps an existing database handle. The schema is
// assumed to exist; intended for tests.
func NewSQLiteStoreWithDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateCall inserts a new call record.
func (s *SQLiteStore) CreateCall(ctx context.Context, call *Call) error {
	if call.ID == "" {
		call.ID = uuid.New().String()
	}
	if call.CreatedAt.IsZero() {
		call.CreatedAt = time.Now().UTC()
	}
	if call.Status == "" {
		call.Status = StatusPending
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calls (id, contact_id, campaign_id, to_number, from_number, provider_call_id, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		call.ID, call.ContactID, call.CampaignID, call.ToNumber, call.FromNumber,
		call.ProviderCallID, string(call.Status), call.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: failed to create call: %w", err)
	}
	return nil
}

// GetCall fetches a call record by ID.
func (s *SQLiteStore) GetCall(ctx context.Context, id string) (*Call, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, contact_id, campaign_id, to_number, from_number, provider_call_id,
			status, created_at, answered_at, ended_at, duration_seconds,
			summary, outcome, sentiment_score, end_reason
		FROM calls WHERE id = ?`, id)

	var call Call
	var status string
	var answeredAt, endedAt sql.NullTime
	err := row.Scan(&call.ID, &call.ContactID, &call.CampaignID, &call.ToNumber,
		&call.FromNumber, &call.ProviderCallID, &status, &call.CreatedAt,
		&answeredAt, &endedAt, &call.DurationSeconds,
		&call.Summary, &call.Outcome, &call.SentimentScore, &call.EndReason)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: failed to get call: %w", err)
	}

	call.Status = CallStatus(status)
	if answeredAt.Valid {
		call.AnsweredAt = &answeredAt.Time
	}
	if endedAt.Valid {
		call.EndedAt = &endedAt.Time
	}
	return &call, nil
}

// UpdateCallStatus applies a partial status update to a call record.
func (s *SQLiteStore) UpdateCallStatus(ctx context.Context, id string, delta StatusDelta) error {
	call, err := s.GetCall(ctx, id)
	if err != nil {
		return err
	}

	status := call.Status
	if delta.Status != nil {
		status = *delta.Status
	}
	providerCallID := call.ProviderCallID
	if delta.ProviderCallID != nil {
		providerCallID = *delta.ProviderCallID
	}
	answeredAt := call.AnsweredAt
	if delta.AnsweredAt != nil {
		answeredAt = delta.AnsweredAt
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE calls SET status = ?, provider_call_id = ?, answered_at = ? WHERE id = ?`,
		string(status), providerCallID, answeredAt, id)
	if err != nil {
		return fmt.Errorf("storage: failed to update call status: %w", err)
	}
	return nil
}

// CompleteCall writes the final call summary and marks the record completed.
func (s *SQLiteStore) CompleteCall(ctx context.Context, id string, completion Completion) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE calls SET status = ?, ended_at = ?, duration_seconds = ?,
			summary = ?, outcome = ?, sentiment_score = ?, end_reason = ?
		WHERE id = ?`,
		string(StatusCompleted), completion.EndedAt, completion.DurationSeconds,
		completion.Summary, completion.Outcome, completion.SentimentScore,
		completion.EndReason, id)
	if err != nil {
		return fmt.Errorf("storage: failed to complete call: %w", err)
	}
	rows, err := res.RowsAffected()
	if err == nil && rows == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendCallLog inserts one interaction log entry.
func (s *SQLiteStore) AppendCallLog(ctx context.Context, entry *CallLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO call_logs (id, call_id, sequence, event_type, direction, content, confidence, emotion, intent, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.CallID, entry.Sequence, entry.EventType, entry.Direction,
		entry.Content, entry.Confidence, entry.Emotion, entry.Intent, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("storage: failed to append call log: %w", err)
	}
	return nil
}

// ListCallLogs returns a call's log entries in sequence order.
func (s *SQLiteStore) ListCallLogs(ctx context.Context, callID string) ([]*CallLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, call_id, sequence, event_type, direction, content, confidence, emotion, intent, timestamp
		FROM call_logs WHERE call_id = ? ORDER BY sequence ASC`, callID)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to list call logs: %w", err)
	}
	defer rows.Close()

	var entries []*CallLog
	for rows.Next() {
		var e CallLog
		if err := rows.Scan(&e.ID, &e.CallID, &e.Sequence, &e.EventType, &e.Direction,
			&e.Content, &e.Confidence, &e.Emotion, &e.Intent, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("storage: failed to scan call log: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// GetContact fetches a contact by ID.
func (s *SQLiteStore) GetContact(ctx context.Context, id string) (*Contact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, phone_number, email FROM contacts WHERE id = ?`, id)

	var c Contact
	err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.PhoneNumber, &c.Email)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: failed to get contact: %w", err)
	}
	return &c, nil
}

// GetCampaign fetches a campaign by ID.
func (s *SQLiteStore) GetCampaign(ctx context.Context, id string) (*Campaign, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, type, script FROM campaigns WHERE id = ?`, id)

	var c Campaign
	err := row.Scan(&c.ID, &c.Name, &c.Type, &c.Script)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: failed to get campaign: %w", err)
	}
	return &c, nil
}

// CreateContact inserts a new contact.
func (s *SQLiteStore) CreateContact(ctx context.Context, contact *Contact) error {
	if contact.ID == "" {
		contact.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (id, first_name, last_name, phone_number, email)
		VALUES (?, ?, ?, ?, ?)`,
		contact.ID, contact.FirstName, contact.LastName, contact.PhoneNumber, contact.Email)
	if err != nil {
		return fmt.Errorf("storage: failed to create contact: %w", err)
	}
	return nil
}

// CreateCampaign inserts a new campaign.
func (s *SQLiteStore) CreateCampaign(ctx context.Context, campaign *Campaign) error {
	if campaign.ID == "" {
		campaign.ID = uuid.New().String()
	}
	if campaign.Type == "" {
		campaign.Type = "sales"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO campaigns (id, name, type, script)
		VALUES (?, ?, ?, ?)`,
		campaign.ID, campaign.Name, campaign.Type, campaign.Script)
	if err != nil {
		return fmt.Errorf("storage: failed to create campaign: %w", err)
	}
	return nil
}
