// Package storage 把会话以 JSON 文件的形式落盘，每个会话一个文件。
// 具体字段布局由会话的可移植记录约定。
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ctwww/cword/internal/model/conversation"
)

// ErrNotFound 表示目录下没有该会话的文件。
var ErrNotFound = errors.New("session not found in store")

// SessionStore persists sessions under a single directory.
type SessionStore struct {
	dir string
}

// NewSessionStore ensures the directory exists and returns the store.
// A leading "~" is expanded to the user's home directory.
func NewSessionStore(dir string) (*SessionStore, error) {
	if strings.HasPrefix(dir, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions directory: %w", err)
	}
	return &SessionStore{dir: dir}, nil
}

// Save writes the session's portable record as pretty-printed JSON.
func (s *SessionStore) Save(session *conversation.Session) error {
	data, err := json.MarshalIndent(session.Portable(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode session %s: %w", session.ID(), err)
	}

	if err := os.WriteFile(s.path(session.ID()), data, 0o644); err != nil {
		return fmt.Errorf("write session %s: %w", session.ID(), err)
	}
	return nil
}

// Load reads one session back from disk.
func (s *SessionStore) Load(id string) (*conversation.Session, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read session %s: %w", id, err)
	}

	var record conversation.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return conversation.FromRecord(record)
}

// Delete removes the session file. Deleting a missing session is not an error.
func (s *SessionStore) Delete(id string) error {
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// Exists reports whether a file for the session is present.
func (s *SessionStore) Exists(id string) bool {
	_, err := os.Stat(s.path(id))
	return err == nil
}

// List 读取目录下全部会话，按更新时间倒序；损坏的文件跳过并记日志。
func (s *SessionStore) List() ([]*conversation.Session, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list sessions directory: %w", err)
	}

	sessions := make([]*conversation.Session, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		session, err := s.Load(id)
		if err != nil {
			log.Printf("[storage] skipping session file %s: %v", entry.Name(), err)
			continue
		}
		sessions = append(sessions, session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt().After(sessions[j].UpdatedAt())
	})
	return sessions, nil
}

func (s *SessionStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}
