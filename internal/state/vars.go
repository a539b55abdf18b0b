package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrVersionConflict indicates a document save lost an optimistic-lock race:
// the stored version no longer matches the version the caller read.
var ErrVersionConflict = errors.New("document version conflict")

// Document is a versioned per-session variable document. Callers read the
// whole document, mutate it in memory, and save it back in one write;
// partial-field updates are not supported.
type Document struct {
	// SessionID scopes the document to one orchestrating session.
	SessionID string
	// Key names the document within the session.
	Key string
	// Data is the raw JSON payload.
	Data []byte
	// Version is incremented on every successful save.
	Version int
}

// GetDocument loads a session document. A missing document is returned as an
// empty document at version 0, ready for a first save.
func (db *DB) GetDocument(sessionID, key string) (*Document, error) {
	row := db.QueryRow(`
		SELECT doc, version FROM session_vars WHERE session_id = ? AND key = ?
	`, sessionID, key)

	var data string
	var version int
	err := row.Scan(&data, &version)
	if err == sql.ErrNoRows {
		return &Document{SessionID: sessionID, Key: key, Version: 0}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	return &Document{
		SessionID: sessionID,
		Key:       key,
		Data:      []byte(data),
		Version:   version,
	}, nil
}

// SaveDocument persists a session document, enforcing optimistic locking:
// the write succeeds only if the stored version still equals doc.Version.
// On success doc.Version is incremented.
func (db *DB) SaveDocument(doc *Document) error {
	now := formatTime(time.Now())

	if doc.Version == 0 {
		_, err := db.Exec(`
			INSERT INTO session_vars (session_id, key, doc, version, updated_at)
			VALUES (?, ?, ?, 1, ?)
		`, doc.SessionID, doc.Key, string(doc.Data), now)
		if err != nil {
			// A concurrent first save produces a primary-key violation.
			return fmt.Errorf("save document: %w: %w", ErrVersionConflict, err)
		}
		doc.Version = 1
		return nil
	}

	res, err := db.Exec(`
		UPDATE session_vars SET doc = ?, version = version + 1, updated_at = ?
		WHERE session_id = ? AND key = ? AND version = ?
	`, string(doc.Data), now, doc.SessionID, doc.Key, doc.Version)
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save document rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("save document %s/%s at version %d: %w",
			doc.SessionID, doc.Key, doc.Version, ErrVersionConflict)
	}
	doc.Version++
	return nil
}
