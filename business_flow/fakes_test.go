package businessflow

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/amirphl/raiot-portal/models"
	"github.com/amirphl/raiot-portal/repository"
	"github.com/google/uuid"
)

// fakeCounterStore serialises transactions with a mutex and can be told to fail
type fakeCounterStore struct {
	mu       sync.Mutex
	counters map[string]*models.SequenceCounter
	failWith error
}

func newFakeCounterStore() *fakeCounterStore {
	return &fakeCounterStore{counters: make(map[string]*models.SequenceCounter)}
}

func (s *fakeCounterStore) Backend() string { return "fake" }

func (s *fakeCounterStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.CounterTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return s.failWith
	}

	tx := &fakeCounterTx{store: s, pending: make(map[string]*models.SequenceCounter)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for name, c := range tx.pending {
		s.counters[name] = c
	}
	return nil
}

func (s *fakeCounterStore) Peek(ctx context.Context, name string) (*models.SequenceCounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	if c, ok := s.counters[name]; ok {
		return c.Clone(), nil
	}
	return nil, nil
}

func (s *fakeCounterStore) count(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.counters[name]; ok {
		return c.Count
	}
	return 0
}

type fakeCounterTx struct {
	store   *fakeCounterStore
	pending map[string]*models.SequenceCounter
}

func (t *fakeCounterTx) Get(ctx context.Context, name string) (*models.SequenceCounter, error) {
	if c, ok := t.pending[name]; ok {
		return c.Clone(), nil
	}
	if c, ok := t.store.counters[name]; ok {
		return c.Clone(), nil
	}
	return nil, nil
}

func (t *fakeCounterTx) Create(ctx context.Context, c *models.SequenceCounter) error {
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	t.pending[c.Name] = c.Clone()
	return nil
}

func (t *fakeCounterTx) Update(ctx context.Context, c *models.SequenceCounter) error {
	c.UpdatedAt = time.Now().UTC()
	t.pending[c.Name] = c.Clone()
	return nil
}

// fakeMemberRepo keeps members in memory
type fakeMemberRepo struct {
	mu      sync.Mutex
	members map[uint]*models.Member
	nextID  uint

	assignErr error
	// beforeAssign runs inside AssignUniqueID before the conditional write
	beforeAssign func(m *models.Member)
}

func newFakeMemberRepo() *fakeMemberRepo {
	return &fakeMemberRepo{members: make(map[uint]*models.Member)}
}

func copyMember(m *models.Member) *models.Member {
	c := *m
	return &c
}

func (r *fakeMemberRepo) add(m *models.Member) *models.Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	m.ID = r.nextID
	if m.UUID == uuid.Nil {
		m.UUID = uuid.New()
	}
	m.CreatedAt = time.Now().UTC()
	m.UpdatedAt = m.CreatedAt
	r.members[m.ID] = copyMember(m)
	return m
}

func (r *fakeMemberRepo) get(id uint) *models.Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.members[id]; ok {
		return copyMember(m)
	}
	return nil
}

func (r *fakeMemberRepo) ByID(ctx context.Context, id uint) (*models.Member, error) {
	return r.get(id), nil
}

func (r *fakeMemberRepo) sorted() []*models.Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Member, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, copyMember(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakeMemberRepo) ByFilter(ctx context.Context, filter models.MemberFilter, orderBy string, limit, offset int) ([]*models.Member, error) {
	var out []*models.Member
	for _, m := range r.sorted() {
		if filter.Email != nil && m.Email != *filter.Email {
			continue
		}
		if filter.Role != nil && m.Role != *filter.Role {
			continue
		}
		if filter.HasUniqueID != nil && m.HasUniqueID() != *filter.HasUniqueID {
			continue
		}
		out = append(out, m)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeMemberRepo) Save(ctx context.Context, m *models.Member) error {
	r.add(m)
	return nil
}

func (r *fakeMemberRepo) SaveBatch(ctx context.Context, ms []*models.Member) error {
	for _, m := range ms {
		r.add(m)
	}
	return nil
}

func (r *fakeMemberRepo) Count(ctx context.Context, filter models.MemberFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *fakeMemberRepo) Exists(ctx context.Context, filter models.MemberFilter) (bool, error) {
	n, _ := r.Count(ctx, filter)
	return n > 0, nil
}

func (r *fakeMemberRepo) ByUUID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	for _, m := range r.sorted() {
		if m.UUID == id {
			return m, nil
		}
	}
	return nil, nil
}

func (r *fakeMemberRepo) ByEmail(ctx context.Context, email string) (*models.Member, error) {
	rows, _ := r.ByFilter(ctx, models.MemberFilter{Email: &email}, "", 1, 0)
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *fakeMemberRepo) ByUniqueID(ctx context.Context, uniqueID string) (*models.Member, error) {
	for _, m := range r.sorted() {
		if m.UniqueID != nil && *m.UniqueID == uniqueID {
			return m, nil
		}
	}
	return nil, nil
}

func (r *fakeMemberRepo) UpdateProfile(ctx context.Context, member *models.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[member.ID]
	if !ok {
		return nil
	}
	m.FullName = member.FullName
	m.Phone = member.Phone
	m.Department = member.Department
	m.YearOfStudy = member.YearOfStudy
	m.RollNumber = member.RollNumber
	m.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *fakeMemberRepo) AssignUniqueID(ctx context.Context, memberID uint, uniqueID string, assignedAt time.Time) (bool, error) {
	if r.assignErr != nil {
		return false, r.assignErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[memberID]
	if !ok {
		return false, nil
	}
	if r.beforeAssign != nil {
		r.beforeAssign(m)
	}
	if m.HasUniqueID() {
		return false, nil
	}
	m.UniqueID = &uniqueID
	m.UniqueIDAssignedAt = &assignedAt
	return true, nil
}

func (r *fakeMemberRepo) ListPendingUniqueID(ctx context.Context, afterID uint, limit int) ([]*models.Member, error) {
	var out []*models.Member
	for _, m := range r.sorted() {
		if m.ID <= afterID || m.HasUniqueID() || m.IsGuest() || m.IsActive == nil || !*m.IsActive || !m.IsProfileComplete() {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// fakeAuditRepo records audit rows in memory
type fakeAuditRepo struct {
	mu      sync.Mutex
	logs    []*models.AuditLog
	saveErr error
}

func (r *fakeAuditRepo) ByID(ctx context.Context, id uint) (*models.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.logs {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, nil
}

func (r *fakeAuditRepo) ByFilter(ctx context.Context, filter models.AuditLogFilter, orderBy string, limit, offset int) ([]*models.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AuditLog
	for _, l := range r.logs {
		if filter.Action != nil && l.Action != *filter.Action {
			continue
		}
		if filter.MemberID != nil && (l.MemberID == nil || *l.MemberID != *filter.MemberID) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (r *fakeAuditRepo) Save(ctx context.Context, l *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	l.ID = uint(len(r.logs) + 1)
	r.logs = append(r.logs, l)
	return nil
}

func (r *fakeAuditRepo) SaveBatch(ctx context.Context, ls []*models.AuditLog) error {
	for _, l := range ls {
		_ = r.Save(ctx, l)
	}
	return nil
}

func (r *fakeAuditRepo) Count(ctx context.Context, filter models.AuditLogFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *fakeAuditRepo) Exists(ctx context.Context, filter models.AuditLogFilter) (bool, error) {
	n, _ := r.Count(ctx, filter)
	return n > 0, nil
}

func (r *fakeAuditRepo) ListByMember(ctx context.Context, memberID uint, limit, offset int) ([]*models.AuditLog, error) {
	return r.ByFilter(ctx, models.AuditLogFilter{MemberID: &memberID}, "", limit, offset)
}

func (r *fakeAuditRepo) ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error) {
	return r.ByFilter(ctx, models.AuditLogFilter{Action: &action}, "", limit, offset)
}

func (r *fakeAuditRepo) actions(action string) []*models.AuditLog {
	rows, _ := r.ListByAction(context.Background(), action, 0, 0)
	return rows
}
