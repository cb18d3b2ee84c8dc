package delivery

import (
	"sort"
	"sync"
)

// Sessions: таблица подключённых сессий
type Sessions struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

func NewSessions() *Sessions {
	return &Sessions{conns: make(map[string]Conn)}
}

// Attach регистрирует соединение. Прежнее соединение с тем же ID закрывается.
func (s *Sessions) Attach(id string, c Conn) {
	s.mu.Lock()
	old, ok := s.conns[id]
	s.conns[id] = c
	s.mu.Unlock()
	if ok && old != c {
		old.Close()
	}
}

// Detach удаляет и закрывает соединение
func (s *Sessions) Detach(id string) bool {
	s.mu.Lock()
	c, ok := s.conns[id]
	delete(s.conns, id)
	s.mu.Unlock()
	if ok {
		c.Close()
	}
	return ok
}

func (s *Sessions) Conn(id string) (Conn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conns[id]
	return c, ok
}

// IDs возвращает все сессии в стабильном порядке
func (s *Sessions) IDs() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.conns))
	for id := range s.conns {
		out = append(out, id)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}
