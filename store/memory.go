package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"financial-matrix/models"
)

// MemoryStore keeps every table in process memory. It backs tests and the
// STORE_DRIVER=memory demo mode; nothing survives a restart.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[string]*models.User
	bots       map[string]*models.Bot
	downloads  []models.Download
	referrals  map[string]*models.Referral
	identities map[string]*models.Identity
	sessions   map[string]*models.AuthSession

	// seq orders rows that share a timestamp
	seq     int64
	botSeq  map[string]int64
	userSeq map[string]int64

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[string]*models.User),
		bots:       make(map[string]*models.Bot),
		referrals:  make(map[string]*models.Referral),
		identities: make(map[string]*models.Identity),
		sessions:   make(map[string]*models.AuthSession),
		botSeq:     make(map[string]int64),
		userSeq:    make(map[string]int64),
		now:        time.Now,
	}
}

// ===== Users =====

func (m *MemoryStore) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[u.ID]; ok {
		return ErrDuplicate
	}
	for _, existing := range m.users {
		if existing.ReferralCode == u.ReferralCode {
			return ErrDuplicate
		}
	}
	now := m.now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	cp := *u
	m.users[u.ID] = &cp
	m.seq++
	m.userSeq[u.ID] = m.seq
	return nil
}

func (m *MemoryStore) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) GetUserByReferralCode(_ context.Context, code string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.ReferralCode == code {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListUsers(_ context.Context) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return m.userSeq[out[i].ID] < m.userSeq[out[j].ID] })
	return out, nil
}

func (m *MemoryStore) IncrementReferralCount(_ context.Context, userID string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.ReferralCount += delta
	u.UpdatedAt = m.now()
	return nil
}

// SetRole changes a profile's role; used by tests.
func (m *MemoryStore) SetRole(_ context.Context, userID string, role models.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.Role = role
	return nil
}

func (m *MemoryStore) CreateReferral(_ context.Context, r *models.Referral) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.referrals {
		if existing.ReferredID == r.ReferredID {
			return ErrDuplicate
		}
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = m.now()
	}
	cp := *r
	m.referrals[r.ID] = &cp
	return nil
}

// Referrals returns every referral row; handy for assertions.
func (m *MemoryStore) Referrals() []models.Referral {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Referral, 0, len(m.referrals))
	for _, r := range m.referrals {
		out = append(out, *r)
	}
	return out
}

// ===== Bots =====

func (m *MemoryStore) ListBots(_ context.Context, filter BotFilter) ([]models.Bot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Bot, 0, len(m.bots))
	for _, b := range m.bots {
		if filter.ReferralRequired != nil && b.ReferralRequired != *filter.ReferralRequired {
			continue
		}
		out = append(out, copyBot(b))
	}
	sort.Slice(out, func(i, j int) bool { return m.botSeq[out[i].ID] < m.botSeq[out[j].ID] })
	return out, nil
}

func (m *MemoryStore) GetBot(_ context.Context, id string) (*models.Bot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bots[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := copyBot(b)
	return &cp, nil
}

func (m *MemoryStore) CreateBot(_ context.Context, b *models.Bot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bots[b.ID]; ok {
		return ErrDuplicate
	}
	now := m.now()
	b.CreatedAt = now
	b.UpdatedAt = now
	cp := copyBot(b)
	m.bots[b.ID] = &cp
	m.seq++
	m.botSeq[b.ID] = m.seq
	return nil
}

func (m *MemoryStore) UpdateBot(_ context.Context, id string, patch models.BotPatch) (*models.Bot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bots[id]
	if !ok {
		return nil, ErrNotFound
	}
	patch.Apply(b)
	b.UpdatedAt = m.now()
	cp := copyBot(b)
	return &cp, nil
}

func (m *MemoryStore) DeleteBot(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bots[id]; !ok {
		return ErrNotFound
	}
	delete(m.bots, id)
	delete(m.botSeq, id)

	kept := m.downloads[:0]
	for _, d := range m.downloads {
		if d.BotID != id {
			kept = append(kept, d)
		}
	}
	m.downloads = kept
	return nil
}

func copyBot(b *models.Bot) models.Bot {
	cp := *b
	if b.BacktestImageURL != nil {
		v := *b.BacktestImageURL
		cp.BacktestImageURL = &v
	}
	return cp
}

// ===== Downloads =====

func (m *MemoryStore) CreateDownload(_ context.Context, d *models.Download) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d.DownloadedAt.IsZero() {
		d.DownloadedAt = m.now()
	}
	cp := *d
	cp.Bot = nil
	m.downloads = append(m.downloads, cp)
	return nil
}

func (m *MemoryStore) ListDownloadsByUser(_ context.Context, userID string) ([]models.Download, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Download
	// newest first: walk insertion order backwards, then stable-sort by time
	for i := len(m.downloads) - 1; i >= 0; i-- {
		d := m.downloads[i]
		if d.UserID != userID {
			continue
		}
		if b, ok := m.bots[d.BotID]; ok {
			cp := copyBot(b)
			d.Bot = &cp
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DownloadedAt.After(out[j].DownloadedAt) })
	return out, nil
}

// ===== Identities & sessions =====

func (m *MemoryStore) CreateIdentity(_ context.Context, i *models.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.identities[i.ID]; ok {
		return ErrDuplicate
	}
	for _, existing := range m.identities {
		if strings.EqualFold(existing.Email, i.Email) {
			return ErrDuplicate
		}
	}
	now := m.now()
	i.CreatedAt = now
	i.UpdatedAt = now
	cp := *i
	m.identities[i.ID] = &cp
	return nil
}

func (m *MemoryStore) GetIdentity(_ context.Context, id string) (*models.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.identities[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *i
	return &cp, nil
}

func (m *MemoryStore) GetIdentityByEmail(_ context.Context, email string) (*models.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, i := range m.identities {
		if i.Email == email {
			cp := *i
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CreateSession(_ context.Context, s *models.AuthSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.sessions {
		if existing.RefreshToken == s.RefreshToken {
			return ErrDuplicate
		}
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = m.now()
	}
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *MemoryStore) GetAuthSession(_ context.Context, id string) (*models.AuthSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) GetSessionByRefreshToken(_ context.Context, token string) (*models.AuthSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.sessions {
		if s.RefreshToken == token {
			cp := *s
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) RevokeSession(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok && s.RevokedAt == nil {
		t := at
		s.RevokedAt = &t
	}
	return nil
}

func (m *MemoryStore) RevokeIdentitySessions(_ context.Context, identityID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sessions {
		if s.IdentityID == identityID && s.RevokedAt == nil {
			t := at
			s.RevokedAt = &t
		}
	}
	return nil
}

func (m *MemoryStore) DeleteExpiredSessions(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, s := range m.sessions {
		if s.ExpiresAt.Before(before) || s.RevokedAt != nil {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

var _ RecordStore = (*MemoryStore)(nil)
var _ RecordStore = (*GormStore)(nil)
