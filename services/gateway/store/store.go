// Copyright (C) 2026 Mentora Labs (dev@mentora.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/mentora-ai/mentora/services/gateway/datatypes"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Key layout. Message keys embed a zero-padded sequence number so badger's
// lexicographic iteration order is insertion order.
const (
	convPrefix      = "conv:"
	msgPrefix       = "msg:"
	seqPrefix       = "seq:"
	analyticsPrefix = "analytics:"
	prefsKey        = "prefs"
)

// Store is the persistence layer for conversations, messages, preferences
// and analytics records.
//
// # Thread Safety
//
// Safe for concurrent use; all operations run in badger transactions.
type Store struct {
	db     *badger.DB
	gcStop chan struct{}
	gcDone chan struct{}
}

// Open opens the store with the given configuration. Call Close when done.
func Open(cfg Config) (*Store, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gcStop = make(chan struct{})
		s.gcDone = make(chan struct{})
		go gcLoop(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger, s.gcStop, s.gcDone)
	}
	return s, nil
}

// Close stops GC and closes the database.
func (s *Store) Close() error {
	if s.gcStop != nil {
		close(s.gcStop)
		<-s.gcDone
		s.gcStop = nil
	}
	return s.db.Close()
}

// =============================================================================
// Conversations
// =============================================================================

// CreateConversation creates a new conversation with the given title.
func (s *Store) CreateConversation(ctx context.Context, title string) (*datatypes.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := time.Now().UnixMilli()
	conv := &datatypes.Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if conv.Title == "" {
		conv.Title = "New conversation"
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return putJSON(txn, convPrefix+conv.ID, conv)
	})
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// GetConversation fetches one conversation by id.
func (s *Store) GetConversation(ctx context.Context, id string) (*datatypes.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var conv datatypes.Conversation
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, convPrefix+id, &conv)
	})
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListConversations returns all conversations, most recently updated first.
func (s *Store) ListConversations(ctx context.Context) ([]datatypes.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []datatypes.Conversation
	err := s.db.View(func(txn *badger.Txn) error {
		return iteratePrefix(txn, convPrefix, func(val []byte) error {
			var conv datatypes.Conversation
			if err := json.Unmarshal(val, &conv); err != nil {
				return err
			}
			out = append(out, conv)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt > out[j].UpdatedAt })
	return out, nil
}

// DeleteConversation removes a conversation and all its messages.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(convPrefix + id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := txn.Delete([]byte(convPrefix + id)); err != nil {
			return err
		}
		if err := txn.Delete([]byte(seqPrefix + id)); err != nil {
			return err
		}

		// Collect message keys first; deleting while iterating invalidates
		// the iterator.
		var keys [][]byte
		prefix := []byte(msgPrefix + id + ":")
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// =============================================================================
// Messages
// =============================================================================

// AppendMessage appends one message to a conversation, assigning the next
// per-conversation sequence number and bumping the conversation's UpdatedAt.
func (s *Store) AppendMessage(ctx context.Context, conversationID, role, content string) (*datatypes.StoredMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msg := &datatypes.StoredMessage{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UnixMilli(),
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		var conv datatypes.Conversation
		if err := getJSON(txn, convPrefix+conversationID, &conv); err != nil {
			return err
		}

		seq, err := nextSeq(txn, seqPrefix+conversationID)
		if err != nil {
			return err
		}
		msg.Seq = seq

		key := fmt.Sprintf("%s%s:%020d", msgPrefix, conversationID, seq)
		if err := putJSON(txn, key, msg); err != nil {
			return err
		}

		conv.UpdatedAt = msg.CreatedAt
		return putJSON(txn, convPrefix+conversationID, &conv)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// ListMessages returns a conversation's messages in insertion order.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]datatypes.StoredMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []datatypes.StoredMessage
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(convPrefix + conversationID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return iteratePrefix(txn, msgPrefix+conversationID+":", func(val []byte) error {
			var msg datatypes.StoredMessage
			if err := json.Unmarshal(val, &msg); err != nil {
				return err
			}
			out = append(out, msg)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// Preferences
// =============================================================================

// GetPreferences returns the stored preferences, or zero values when none
// have been saved yet.
func (s *Store) GetPreferences(ctx context.Context) (*datatypes.UserPreferences, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var prefs datatypes.UserPreferences
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, prefsKey, &prefs)
	})
	if errors.Is(err, ErrNotFound) {
		return &datatypes.UserPreferences{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &prefs, nil
}

// PutPreferences replaces the stored preferences.
func (s *Store) PutPreferences(ctx context.Context, prefs *datatypes.UserPreferences) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return putJSON(txn, prefsKey, prefs)
	})
}

// =============================================================================
// Analytics
// =============================================================================

// AppendAnalytics stores one analytics record.
func (s *Store) AppendAnalytics(ctx context.Context, rec *datatypes.AnalyticsRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec.EnsureDefaults()
	key := fmt.Sprintf("%s%020d:%s", analyticsPrefix, rec.CreatedAt, rec.ID)
	return s.db.Update(func(txn *badger.Txn) error {
		return putJSON(txn, key, rec)
	})
}

// ListAnalytics returns all analytics records in chronological order.
func (s *Store) ListAnalytics(ctx context.Context) ([]datatypes.AnalyticsRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []datatypes.AnalyticsRecord
	err := s.db.View(func(txn *badger.Txn) error {
		return iteratePrefix(txn, analyticsPrefix, func(val []byte) error {
			var rec datatypes.AnalyticsRecord
			if err := json.Unmarshal(val, &rec); err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list analytics: %w", err)
	}
	return out, nil
}

// =============================================================================
// Transaction Helpers
// =============================================================================

func putJSON(txn *badger.Txn, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set([]byte(key), data)
}

func getJSON(txn *badger.Txn, key string, v any) error {
	item, err := txn.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func iteratePrefix(txn *badger.Txn, prefix string, fn func(val []byte) error) error {
	it := txn.NewIterator(badger.IteratorOptions{
		Prefix:         []byte(prefix),
		PrefetchValues: true,
		PrefetchSize:   100,
	})
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

// nextSeq reads, increments and writes the per-conversation counter inside
// the caller's transaction, so sequence assignment is atomic with the
// message write.
func nextSeq(txn *badger.Txn, key string) (uint64, error) {
	var seq uint64
	item, err := txn.Get([]byte(key))
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		seq = 0
	case err != nil:
		return 0, err
	default:
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &seq)
		}); err != nil {
			return 0, err
		}
	}
	seq++
	data, err := json.Marshal(seq)
	if err != nil {
		return 0, err
	}
	return seq, txn.Set([]byte(key), data)
}
