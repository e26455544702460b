package storage

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("storage: not found")
	ErrAlreadyExists = errors.New("storage: already exists")
)

// CallStore persists call records and their interaction logs.
type CallStore interface {
	CreateCall(ctx context.Context, call *Call) error
	GetCall(ctx context.Context, id string) (*Call, error)
	UpdateCallStatus(ctx context.Context, id string, delta StatusDelta) error
	CompleteCall(ctx context.Context, id string, completion Completion) error
	AppendCallLog(ctx context.Context, entry *CallLog) error
	ListCallLogs(ctx context.Context, callID string) ([]*CallLog, error)
}

// DirectoryStore reads contacts and campaigns used to seed session context.
type DirectoryStore interface {
	GetContact(ctx context.Context, id string) (*Contact, error)
	GetCampaign(ctx context.Context, id string) (*Campaign, error)
	CreateContact(ctx context.Context, contact *Contact) error
	CreateCampaign(ctx context.Context, campaign *Campaign) error
}

// Store groups the persistence surfaces the engine depends on.
type Store interface {
	CallStore
	DirectoryStore

	// Close releases any underlying resources.
	Close() error
}
