package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/parlamentwatch/member-ingestion-service/internal/models"
)

// MemoryStorage keeps everything in process memory. Used for local runs and tests.
type MemoryStorage struct {
	mu        sync.RWMutex
	parties   []models.Party
	states    []models.State
	districts []models.ElectoralDistrict
	members   []models.Member
	sessions  map[string]models.ImportSession
	nextID    int64
}

// NewMemoryStorage creates an empty in-memory store
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{sessions: make(map[string]models.ImportSession)}
}

func (s *MemoryStorage) WipeAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members = nil
	s.parties = nil
	s.states = nil
	s.districts = nil
	return nil
}

func (s *MemoryStorage) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *MemoryStorage) InsertParties(ctx context.Context, parties []models.Party) ([]models.Party, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range parties {
		if containsParty(s.parties, p.ShortName) {
			continue
		}
		p.ID = s.id()
		s.parties = append(s.parties, p)
	}
	return append([]models.Party(nil), s.parties...), nil
}

func containsParty(parties []models.Party, shortName string) bool {
	for _, p := range parties {
		if p.ShortName == shortName {
			return true
		}
	}
	return false
}

func (s *MemoryStorage) InsertStates(ctx context.Context, states []models.State) ([]models.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
outer:
	for _, st := range states {
		for _, existing := range s.states {
			if existing.Name == st.Name {
				continue outer
			}
		}
		st.ID = s.id()
		s.states = append(s.states, st)
	}
	return append([]models.State(nil), s.states...), nil
}

func (s *MemoryStorage) InsertDistricts(ctx context.Context, districts []models.ElectoralDistrict) ([]models.ElectoralDistrict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
outer:
	for _, d := range districts {
		for _, existing := range s.districts {
			if existing.Code == d.Code {
				continue outer
			}
		}
		d.ID = s.id()
		s.districts = append(s.districts, d)
	}
	return append([]models.ElectoralDistrict(nil), s.districts...), nil
}

func (s *MemoryStorage) InsertMembers(ctx context.Context, members []models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool, len(s.members))
	for _, m := range s.members {
		seen[m.ID] = true
	}
	for _, m := range members {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		s.members = append(s.members, m)
	}
	return nil
}

func (s *MemoryStorage) UpdateMemberDetail(ctx context.Context, memberID string, detail models.MemberDetail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.members {
		if s.members[i].ID == memberID {
			applyDetail(&s.members[i], detail)
			return nil
		}
	}
	return fmt.Errorf("member %s: %w", memberID, ErrNotFound)
}

func (s *MemoryStorage) ListMembers(ctx context.Context) ([]models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Member(nil), s.members...), nil
}

func (s *MemoryStorage) GetMember(ctx context.Context, id string) (*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.members {
		if m.ID == id {
			m := m
			return &m, nil
		}
	}
	return nil, nil
}

func (s *MemoryStorage) ListParties(ctx context.Context) ([]models.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Party(nil), s.parties...), nil
}

func (s *MemoryStorage) ListStates(ctx context.Context) ([]models.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.State(nil), s.states...), nil
}

func (s *MemoryStorage) ListDistricts(ctx context.Context) ([]models.ElectoralDistrict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ElectoralDistrict(nil), s.districts...), nil
}

func (s *MemoryStorage) CreateSession(ctx context.Context, session models.ImportSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.SessionID]; ok {
		return fmt.Errorf("session %s already exists", session.SessionID)
	}
	s.sessions[session.SessionID] = session
	return nil
}

func (s *MemoryStorage) UpdateSession(ctx context.Context, session models.ImportSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.SessionID]; !ok {
		return fmt.Errorf("session %s: %w", session.SessionID, ErrNotFound)
	}
	s.sessions[session.SessionID] = session
	return nil
}

func (s *MemoryStorage) GetSession(ctx context.Context, sessionID string) (*models.ImportSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

func (s *MemoryStorage) LatestSession(ctx context.Context) (*models.ImportSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.sessions) == 0 {
		return nil, nil
	}
	all := make([]models.ImportSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		all = append(all, session)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartedAt.After(all[j].StartedAt) })
	return &all[0], nil
}

func (s *MemoryStorage) Ping(ctx context.Context) error { return nil }

// Close is a no-op for in-memory storage
func (s *MemoryStorage) Close() error { return nil }
