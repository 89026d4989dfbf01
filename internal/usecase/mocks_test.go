package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"license-authority/internal/domain"
	"license-authority/internal/domain/model"
	"license-authority/internal/domain/ports/repository"
)

// memLicenseRepo is a small in-memory implementation used by unit tests.
// CompareAndUpdateDevices honors the version counter the same way the
// Postgres repo does, so admission races can be exercised for real.
type memLicenseRepo struct {
	mu           sync.Mutex
	store        map[string]*model.LicenseRecord
	insertErr    error // used by tests to simulate storage failures
	casErr       error
	failFirstCAS bool // report one version conflict, then behave normally
}

func newMemLicenseRepo() *memLicenseRepo {
	return &memLicenseRepo{store: make(map[string]*model.LicenseRecord)}
}

func (m *memLicenseRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.LicenseRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyRecord(rec), nil
}

func (m *memLicenseRepo) Insert(ctx context.Context, tx repository.Tx, rec *model.LicenseRecord) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[rec.ID]; ok {
		return domain.ErrAlreadyExists
	}
	m.store[rec.ID] = copyRecord(rec)
	return nil
}

func (m *memLicenseRepo) CompareAndUpdateDevices(ctx context.Context, tx repository.Tx, id string, expectedVersion int64, devices []string) error {
	if m.casErr != nil {
		return m.casErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFirstCAS {
		m.failFirstCAS = false
		return domain.ErrVersionConflict
	}
	rec, ok := m.store[id]
	if !ok {
		return domain.ErrVersionConflict
	}
	if rec.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	rec.BoundDevices = append([]string(nil), devices...)
	rec.Version++
	return nil
}

func (m *memLicenseRepo) SetRevoked(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	if rec.Revoked {
		return domain.ErrAlreadyRevoked
	}
	rec.Revoked = true
	return nil
}

func (m *memLicenseRepo) FindActiveBySubjectAndTier(ctx context.Context, tx repository.Tx, subject string, tier model.Tier) (*model.LicenseRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, rec := range m.store {
		if rec.Subject == subject && rec.Tier == tier && !rec.Revoked && rec.ExpiresAt.After(now) {
			return copyRecord(rec), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memLicenseRepo) FindExpiring(ctx context.Context, tx repository.Tx, within time.Duration) ([]*model.LicenseRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var out []*model.LicenseRecord
	for _, rec := range m.store {
		if !rec.Revoked && rec.ExpiresAt.After(now) && !rec.ExpiresAt.After(now.Add(within)) {
			out = append(out, copyRecord(rec))
		}
	}
	return out, nil
}

func copyRecord(rec *model.LicenseRecord) *model.LicenseRecord {
	cp := *rec
	cp.BoundDevices = append([]string(nil), rec.BoundDevices...)
	return &cp
}

// memEventRepo collects activation audit events.
type memEventRepo struct {
	mu        sync.Mutex
	events    []*model.ActivationEvent
	appendErr error
}

func newMemEventRepo() *memEventRepo {
	return &memEventRepo{}
}

func (m *memEventRepo) Append(ctx context.Context, tx repository.Tx, ev *model.ActivationEvent) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ev
	m.events = append(m.events, &cp)
	return nil
}

func (m *memEventRepo) ListByLicense(ctx context.Context, tx repository.Tx, licenseID string) ([]*model.ActivationEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ActivationEvent
	for _, ev := range m.events {
		if ev.LicenseID == licenseID {
			cp := *ev
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memEventRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// memTxManager counts transactions and runs the callback inline. Tests can
// assign withTxFunc to fail or inspect a specific transaction.
type memTxManager struct {
	mu         sync.Mutex
	calls      int
	withTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func (m *memTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.withTxFunc != nil {
		return m.withTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

func (m *memTxManager) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// memNotifier records alerts.
type memNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (m *memNotifier) Notify(ctx context.Context, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, message)
	return nil
}

func (m *memNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// syncRunner runs submitted tasks inline so tests see effects immediately.
type syncRunner struct{}

func (syncRunner) Submit(task func(ctx context.Context) error) error {
	return task(context.Background())
}
