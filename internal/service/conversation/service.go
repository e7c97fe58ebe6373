// Package conversation 管理活动会话的注册与串行化访问。
// Session 自身不加锁；所有修改会话的调用都经由本服务排队。
package conversation

import (
	"context"
	"errors"
	"sync"

	"github.com/ctwww/cword/internal/model/conversation"
	"github.com/ctwww/cword/internal/storage"
)

// ErrSessionNotFound 表示既不在内存也不在存储中的会话。
var ErrSessionNotFound = errors.New("session not found")

// Service keeps active sessions in memory and mirrors them to the optional
// store. One logical caller drives a session at a time; the service mutex
// provides that serialization for concurrent HTTP handlers.
type Service struct {
	mu       sync.Mutex
	sessions map[string]*conversation.Session
	store    *storage.SessionStore // may be nil: memory-only operation
}

// NewService bootstraps the session registry. Pass a nil store to run
// without persistence.
func NewService(store *storage.SessionStore) *Service {
	return &Service{
		sessions: make(map[string]*conversation.Session),
		store:    store,
	}
}

// Create provisions an empty session, persists it and returns it.
func (s *Service) Create(_ context.Context, productName string) (*conversation.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := conversation.New(productName)
	s.sessions[session.ID()] = session
	if err := s.persistLocked(session); err != nil {
		return nil, err
	}
	return session, nil
}

// Get returns the session, loading it from the store when it is not in
// memory (e.g. after a restart).
func (s *Service) Get(_ context.Context, id string) (*conversation.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(id)
}

// AppendUserMessage appends one user turn and persists the session.
func (s *Service) AppendUserMessage(_ context.Context, id, content string) (*conversation.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.getLocked(id)
	if err != nil {
		return nil, err
	}
	session.AppendMessage(conversation.UserMessage(content))
	if err := s.persistLocked(session); err != nil {
		return nil, err
	}
	return session, nil
}

// SetStage moves the session to another stage. Stage policy belongs to the
// caller; the coordinator never does this.
func (s *Service) SetStage(_ context.Context, id string, stage conversation.Stage) (*conversation.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.getLocked(id)
	if err != nil {
		return nil, err
	}
	session.SetStage(stage)
	if err := s.persistLocked(session); err != nil {
		return nil, err
	}
	return session, nil
}

// SetProductName records the product identity once it is known.
func (s *Service) SetProductName(_ context.Context, id, name string) (*conversation.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.getLocked(id)
	if err != nil {
		return nil, err
	}
	session.SetProductName(name)
	if err := s.persistLocked(session); err != nil {
		return nil, err
	}
	return session, nil
}

// Update 串行地对会话执行一次修改（例如让角色发言），随后持久化。
// fn 返回错误时不落盘，但 fn 已经做出的追加保留（发言各自独立有效）。
func (s *Service) Update(_ context.Context, id string, fn func(*conversation.Session) error) (*conversation.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.getLocked(id)
	if err != nil {
		return nil, err
	}

	fnErr := fn(session)
	if err := s.persistLocked(session); err != nil {
		return nil, err
	}
	if fnErr != nil {
		return session, fnErr
	}
	return session, nil
}

// List returns every known session, preferring the store's view when
// available so sessions from earlier runs are included.
func (s *Service) List(_ context.Context) ([]*conversation.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store != nil {
		sessions, err := s.store.List()
		if err != nil {
			return nil, err
		}
		// 活动中的内存实例优先于落盘快照。
		for i, session := range sessions {
			if live, ok := s.sessions[session.ID()]; ok {
				sessions[i] = live
			}
		}
		return sessions, nil
	}

	sessions := make([]*conversation.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// Delete 归档/删除由存储层负责；这里只移除文件与内存索引。
func (s *Service) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	if s.store != nil {
		return s.store.Delete(id)
	}
	return nil
}

func (s *Service) getLocked(id string) (*conversation.Session, error) {
	if session, ok := s.sessions[id]; ok {
		return session, nil
	}
	if s.store != nil {
		session, err := s.store.Load(id)
		if err == nil {
			s.sessions[id] = session
			return session, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrSessionNotFound
}

func (s *Service) persistLocked(session *conversation.Session) error {
	if s.store == nil {
		return nil
	}
	return s.store.Save(session)
}
