package repository

import (
	"sync"

	"github.com/wakala/renewal-analytics/internal/domain"
)

// MemoryAlertStore keeps underbilling alerts in process memory. Entries are
// never evicted.
type MemoryAlertStore struct {
	mu     sync.RWMutex
	alerts []domain.UnderbillingAlert
}

func NewMemoryAlertStore() *MemoryAlertStore {
	return &MemoryAlertStore{}
}

func (s *MemoryAlertStore) AppendAlerts(alerts []domain.UnderbillingAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alerts...)
	return nil
}

func (s *MemoryAlertStore) ListAlerts(q domain.AlertQuery) ([]domain.UnderbillingAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.UnderbillingAlert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if q.Matches(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *MemoryAlertStore) ResolveAlert(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].ID == id {
			s.alerts[i].Resolved = true
			return true, nil
		}
	}
	return false, nil
}

// MemoryRiskStore keeps renewal risks in process memory. Entries are never
// evicted.
type MemoryRiskStore struct {
	mu    sync.RWMutex
	risks []domain.RenewalRisk
}

func NewMemoryRiskStore() *MemoryRiskStore {
	return &MemoryRiskStore{}
}

func (s *MemoryRiskStore) AppendRisks(risks []domain.RenewalRisk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.risks = append(s.risks, risks...)
	return nil
}

func (s *MemoryRiskStore) ListRisks(q domain.RiskQuery) ([]domain.RenewalRisk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.RenewalRisk, 0, len(s.risks))
	for _, r := range s.risks {
		if q.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryRiskStore) UpdateRiskStatus(id string, status domain.RiskStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.risks {
		if s.risks[i].ID == id {
			s.risks[i].Status = status
			return true, nil
		}
	}
	return false, nil
}
