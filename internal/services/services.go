package services

import (
	"context"
	"encoding/json"
)

// Remote is the capability interface the coordinator and drain engine
// dispatch against.
//
// All methods must be safe to call more than once with the same payload:
// Write is a merge/upsert, and Delete tolerates an already-deleted
// document. The drain loop can replay an operation after a partial
// success (remote write landed, queue removal didn't), so idempotence is
// a contract, not an optimization.
type Remote interface {
	// Read fetches the user-scoped document from a collection.
	Read(ctx context.Context, collection, userID string) (json.RawMessage, error)

	// Write merges a partial document into the user-scoped document,
	// creating it if absent.
	Write(ctx context.Context, collection, userID string, patch any) error

	// List fetches every document in a collection owned by the user.
	List(ctx context.Context, collection, userID string) ([]json.RawMessage, error)

	// Create adds a new document and returns its server-assigned ID.
	Create(ctx context.Context, collection string, payload any) (string, error)

	// Delete removes a document by ID. Deleting an absent document is
	// not an error.
	Delete(ctx context.Context, collection, id string) error
}

// Identity is the authenticated user as reported by the auth service.
type Identity struct {
	UID         string `json:"uid"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}
