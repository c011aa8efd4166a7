package data

import (
	"fmt"

	"github.com/relaydesk/relay/internal/biz/repo"
)

// Directory backends
const (
	DirectorySQLite   = "sqlite"
	DirectoryDynamoDB = "dynamodb"
)

// DirectoryStore is a readable and seedable business directory
type DirectoryStore interface {
	repo.DirectoryRepo
	repo.DirectoryWriter
}

// Repositories contains all store-backed repositories
type Repositories struct {
	Approvals   repo.ApprovalRepo
	Queue       repo.OutboundQueue
	Corrections repo.CorrectionRepo
	Audit       repo.AuditRepo
	Cache       repo.TranslationCacheRepo
	Markers     repo.MarkerRepo
	Languages   repo.LanguageRepo
	History     repo.HistoryRepo
}

// NewRepositories creates all repositories on one store
func NewRepositories(store *Store) *Repositories {
	return &Repositories{
		Approvals:   NewApprovalRepo(store),
		Queue:       NewOutboundQueue(store),
		Corrections: NewCorrectionRepo(store),
		Audit:       NewAuditRepo(store),
		Cache:       NewTranslationCache(store),
		Markers:     NewMarkerRepo(store),
		Languages:   NewLanguageRepo(store),
		History:     NewHistoryRepo(store),
	}
}

// NewDirectory selects the directory backend. dynamo is only used for the
// dynamodb backend and may be nil otherwise.
func NewDirectory(backend string, store *Store, dynamo dynamodbAPI, table string) (DirectoryStore, error) {
	switch backend {
	case "", DirectorySQLite:
		return &sqliteDirectory{store: store}, nil
	case DirectoryDynamoDB:
		return NewDynamoDirectory(dynamo, table)
	default:
		return nil, fmt.Errorf("unknown directory backend %q", backend)
	}
}
