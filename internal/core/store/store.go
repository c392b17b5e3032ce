// Package store persists file analyses keyed by path and content hash so
// unchanged files skip re-parsing across runs.
package store

import (
	"crypto/sha256"
	"encoding/hex"

	"guardrail/internal/engine/parser"
)

// AnalysisStore caches parsed file analyses. A hit requires both the path
// and the content hash to match, so edits invalidate naturally.
type AnalysisStore interface {
	Get(path, contentHash string) (*parser.File, bool, error)
	Put(path, contentHash string, file *parser.File) error
	Evict(path string) error
	Close() error
}

// ContentHash returns the hex SHA-256 of the file content. Graph nodes and
// cache entries share this key.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// NoopStore satisfies AnalysisStore without persisting anything. Used when
// caching is disabled.
type NoopStore struct{}

func (NoopStore) Get(string, string) (*parser.File, bool, error) { return nil, false, nil }
func (NoopStore) Put(string, string, *parser.File) error         { return nil }
func (NoopStore) Evict(string) error                             { return nil }
func (NoopStore) Close() error                                   { return nil }
