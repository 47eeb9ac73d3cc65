package storage

import (
	"context"
	"database/sql"

	"github.com/georgysavva/scany/v2/sqlscan"
)

// Execer is an interface for executing SQL statements
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// ExecQuerier combines both Execer and sqlscan.Querier interfaces
// for operations that need both SELECT and INSERT/UPDATE/DELETE capabilities
type ExecQuerier interface {
	Execer
	sqlscan.Querier
}

// Cache is the local string key/value store the chat and project stores persist into.
// Get reports found=false without an error when the key was never written.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Keys written by the stores.
const (
	KeySelectedModel         = "selectedModel"
	KeyConversations         = "conversations"
	KeyCurrentConversationID = "currentConversationId"
	KeyProjects              = "projects"
)
