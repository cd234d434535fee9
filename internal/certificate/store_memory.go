package certificate

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"gascert/pkg/platform/sentinel"
)

// MemoryStore keeps certificates in process memory. It favors clarity over
// performance and backs unit tests and single-node development the same way
// the postgres store backs production.
type MemoryStore struct {
	mu      sync.RWMutex
	certs   map[uuid.UUID]*Certificate
	numbers map[string]uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		certs:   make(map[uuid.UUID]*Certificate),
		numbers: make(map[string]uuid.UUID),
	}
}

func (s *MemoryStore) Create(_ context.Context, cert *Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.numbers[cert.CertificateNo]; exists {
		return sentinel.ErrConflict
	}
	s.certs[cert.ID] = cert.Clone()
	s.numbers[cert.CertificateNo] = cert.ID
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id uuid.UUID) (*Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cert, ok := s.certs[id]; ok {
		return cert.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemoryStore) List(_ context.Context, filter ListFilter) ([]*Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Certificate
	for _, cert := range s.certs {
		if filter.CreatedBy != nil && cert.CreatedBy != *filter.CreatedBy {
			continue
		}
		if filter.Status != nil && cert.Status != *filter.Status {
			continue
		}
		out = append(out, cert.Clone())
	}
	return out, nil
}

// Update replaces scalar fields and, when requested, swaps row collections
// wholesale under the write lock so readers never observe a partial set.
func (s *MemoryStore) Update(_ context.Context, cert *Certificate, replaceRows, replaceAdjusted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.certs[cert.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	next := cert.Clone()
	if !replaceRows {
		next.CalibrationRows = existing.CalibrationRows
	}
	if !replaceAdjusted {
		next.AdjustedRows = existing.AdjustedRows
	}
	if existing.CertificateNo != next.CertificateNo {
		if _, taken := s.numbers[next.CertificateNo]; taken {
			return sentinel.ErrConflict
		}
		delete(s.numbers, existing.CertificateNo)
		s.numbers[next.CertificateNo] = next.ID
	}
	s.certs[cert.ID] = next
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cert, ok := s.certs[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.numbers, cert.CertificateNo)
	delete(s.certs, id)
	return nil
}

// Approve is the read-check-write the service relies on: the pending check
// and the status flip happen under one write lock, so of two racing approvals
// exactly one succeeds.
func (s *MemoryStore) Approve(_ context.Context, id uuid.UUID, stamp ApprovalStamp) (*Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cert, ok := s.certs[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if cert.Status != StatusPending {
		return nil, sentinel.ErrInvalidState
	}
	approvedBy := stamp.ApprovedBy
	cert.Status = StatusApproved
	cert.ApprovedBy = &approvedBy
	cert.ApproverName = stamp.Name
	cert.ApproverSignature = stamp.Signature
	cert.FormatType = FormatOfficial
	cert.UpdatedAt = stamp.At
	return cert.Clone(), nil
}

func (s *MemoryStore) SetPending(_ context.Context, id uuid.UUID) (*Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cert, ok := s.certs[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cert.Status = StatusPending
	cert.ApprovedBy = nil
	cert.ApproverName = ""
	cert.ApproverSignature = ""
	cert.UpdatedAt = time.Now()
	return cert.Clone(), nil
}

// MemoryUserDirectory is the in-memory UserDirectory used by tests and dev.
type MemoryUserDirectory struct {
	mu    sync.RWMutex
	users map[uuid.UUID]User
}

func NewMemoryUserDirectory() *MemoryUserDirectory {
	return &MemoryUserDirectory{users: make(map[uuid.UUID]User)}
}

func (d *MemoryUserDirectory) Put(user User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user.ID] = user
}

func (d *MemoryUserDirectory) FindByID(_ context.Context, id uuid.UUID) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if user, ok := d.users[id]; ok {
		return user, nil
	}
	return User{}, sentinel.ErrNotFound
}
