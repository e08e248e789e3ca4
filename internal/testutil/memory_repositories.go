package testutil

import (
	"context"
	"sort"
	"sync"

	"3tcapital/ms_fiscal_core/internal/core/fiscal"
)

// DocumentStore is an in-memory fiscal.DocumentRepository.
type DocumentStore struct {
	mu    sync.Mutex
	docs  map[string]fiscal.Document
	saves int
	// SaveErr, when set, is returned by every Save.
	SaveErr error
}

// NewDocumentStore creates an empty store seeded with docs.
func NewDocumentStore(docs ...fiscal.Document) *DocumentStore {
	s := &DocumentStore{docs: make(map[string]fiscal.Document)}
	for _, d := range docs {
		s.docs[d.TenantID+"/"+d.ReferenceCode] = d
	}
	return s
}

func (s *DocumentStore) Save(ctx context.Context, doc *fiscal.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.saves++
	s.docs[doc.TenantID+"/"+doc.ReferenceCode] = *doc
	return nil
}

func (s *DocumentStore) FindByReference(ctx context.Context, tenantID, referenceCode string) (*fiscal.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[tenantID+"/"+referenceCode]
	if !ok {
		return nil, fiscal.ErrNotFound
	}
	return &d, nil
}

func (s *DocumentStore) ListByStatus(ctx context.Context, tenantID string, status fiscal.Status, limit int) ([]fiscal.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []fiscal.Document
	for _, d := range s.docs {
		if d.TenantID == tenantID && d.Status == status {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// All returns every stored document.
func (s *DocumentStore) All() []fiscal.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]fiscal.Document, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d)
	}
	return out
}

// SaveCount returns how many successful saves happened.
func (s *DocumentStore) SaveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// ProfileStore is an in-memory fiscal.ProfileRepository.
type ProfileStore struct {
	mu             sync.Mutex
	Settings       map[string]fiscal.TenantSettings
	Emitters       map[string]fiscal.EmitterProfile
	Counterparties map[string]fiscal.CounterpartyProfile
	// MunicipalityUpdates records every cache-back as "counterpartyID=code".
	MunicipalityUpdates []string
}

// NewProfileStore creates an empty profile store.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		Settings:       make(map[string]fiscal.TenantSettings),
		Emitters:       make(map[string]fiscal.EmitterProfile),
		Counterparties: make(map[string]fiscal.CounterpartyProfile),
	}
}

func (s *ProfileStore) FindSettings(ctx context.Context, tenantID string) (*fiscal.TenantSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.Settings[tenantID]
	if !ok {
		return nil, fiscal.ErrNotFound
	}
	return &v, nil
}

func (s *ProfileStore) FindEmitter(ctx context.Context, tenantID string) (*fiscal.EmitterProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.Emitters[tenantID]
	if !ok {
		return nil, fiscal.ErrNotFound
	}
	return &v, nil
}

func (s *ProfileStore) FindCounterparty(ctx context.Context, tenantID, counterpartyID string) (*fiscal.CounterpartyProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.Counterparties[tenantID+"/"+counterpartyID]
	if !ok {
		return nil, fiscal.ErrNotFound
	}
	return &v, nil
}

func (s *ProfileStore) UpdateCounterpartyMunicipality(ctx context.Context, tenantID, counterpartyID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := tenantID + "/" + counterpartyID
	v, ok := s.Counterparties[key]
	if !ok {
		return fiscal.ErrNotFound
	}
	v.MunicipalityCode = code
	s.Counterparties[key] = v
	s.MunicipalityUpdates = append(s.MunicipalityUpdates, counterpartyID+"="+code)
	return nil
}

// PutCounterparty stores a counterparty under its tenant.
func (s *ProfileStore) PutCounterparty(cp fiscal.CounterpartyProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Counterparties[cp.TenantID+"/"+cp.ID] = cp
}
