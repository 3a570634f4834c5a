package repositories

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/HSouheill/vpn_reseller_backend/affiliate"
	"github.com/HSouheill/vpn_reseller_backend/models"
	"github.com/HSouheill/vpn_reseller_backend/utils"
)

// In-memory implementations of the affiliate collaborators. They back the
// development mode (no MONGO_URI) and the package tests.

type MemoryRelationshipStore struct {
	mu      sync.RWMutex
	rows    []models.AffiliateRelationship
	byChild map[string][]int
}

func NewMemoryRelationshipStore(seed ...models.AffiliateRelationship) *MemoryRelationshipStore {
	s := &MemoryRelationshipStore{byChild: map[string][]int{}}
	for _, row := range seed {
		s.rows = append(s.rows, row)
		s.byChild[row.ChildID] = append(s.byChild[row.ChildID], len(s.rows)-1)
	}
	return s
}

// Insert is a compare-and-insert on the child's active sponsor.
func (s *MemoryRelationshipStore) Insert(_ context.Context, edge models.AffiliateRelationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if edge.Status == models.RelationshipActive {
		for _, i := range s.byChild[edge.ChildID] {
			if s.rows[i].Status == models.RelationshipActive {
				return affiliate.ErrDuplicateRelationship
			}
		}
	}
	s.rows = append(s.rows, edge)
	s.byChild[edge.ChildID] = append(s.byChild[edge.ChildID], len(s.rows)-1)
	return nil
}

func (s *MemoryRelationshipStore) FindActiveByChild(_ context.Context, childID string) ([]models.AffiliateRelationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.AffiliateRelationship
	for _, i := range s.byChild[childID] {
		if s.rows[i].Status == models.RelationshipActive {
			out = append(out, s.rows[i])
		}
	}
	return out, nil
}

func (s *MemoryRelationshipStore) FindActiveByParent(_ context.Context, parentID string) ([]models.AffiliateRelationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.AffiliateRelationship
	for _, row := range s.rows {
		if row.ParentID == parentID && row.Status == models.RelationshipActive {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *MemoryRelationshipStore) AllActiveEdges(_ context.Context) ([]models.AffiliateRelationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.AffiliateRelationship, 0, len(s.rows))
	for _, row := range s.rows {
		if row.Status == models.RelationshipActive {
			out = append(out, row)
		}
	}
	return out, nil
}

type MemoryLedger struct {
	mu   sync.RWMutex
	rows []models.CommissionLog
	keys map[affiliate.LedgerKey]struct{}
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{keys: map[affiliate.LedgerKey]struct{}{}}
}

func (l *MemoryLedger) Append(_ context.Context, entry models.CommissionLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := affiliate.KeyOf(entry)
	if _, ok := l.keys[key]; ok {
		return affiliate.ErrDuplicateEntry
	}
	l.keys[key] = struct{}{}
	l.rows = append(l.rows, entry)
	return nil
}

func (l *MemoryLedger) Exists(_ context.Context, key affiliate.LedgerKey) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.keys[key]
	return ok, nil
}

func (l *MemoryLedger) Query(_ context.Context, beneficiaryID string) ([]models.CommissionLog, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []models.CommissionLog
	for i := len(l.rows) - 1; i >= 0; i-- {
		if l.rows[i].BeneficiaryID == beneficiaryID {
			out = append(out, l.rows[i])
		}
	}
	return out, nil
}

// All returns every entry in insertion order
func (l *MemoryLedger) All() []models.CommissionLog {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.CommissionLog(nil), l.rows...)
}

type MemoryConfigStore struct {
	mu  sync.RWMutex
	cfg models.AffiliateConfig
}

func NewMemoryConfigStore(cfg models.AffiliateConfig) *MemoryConfigStore {
	return &MemoryConfigStore{cfg: cfg}
}

func (s *MemoryConfigStore) GetAffiliateConfig(_ context.Context) (models.AffiliateConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg := s.cfg
	cfg.LevelPercentage = append([]float64(nil), s.cfg.LevelPercentage...)
	return cfg, nil
}

func (s *MemoryConfigStore) SaveAffiliateConfig(_ context.Context, cfg models.AffiliateConfig) (models.AffiliateConfig, error) {
	if err := cfg.Validate(); err != nil {
		return models.AffiliateConfig{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg.Version = s.cfg.Version + 1
	s.cfg = cfg
	return cfg, nil
}

// MemoryWallet records credited amounts per user
type MemoryWallet struct {
	mu      sync.Mutex
	credits map[string]int64
	balance map[string]float64
}

func NewMemoryWallet() *MemoryWallet {
	return &MemoryWallet{credits: map[string]int64{}, balance: map[string]float64{}}
}

func (w *MemoryWallet) AddCredits(_ context.Context, userID string, amount int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.credits[userID] += amount
	return nil
}

func (w *MemoryWallet) AddBalance(_ context.Context, userID string, amount float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balance[userID] += amount
	return nil
}

func (w *MemoryWallet) Credits(userID string) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.credits[userID]
}

func (w *MemoryWallet) Balance(userID string) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balance[userID]
}

// FixedPrice is a PricingOracle with a constant credit unit price
type FixedPrice float64

func (p FixedPrice) CurrentCreditUnitPrice(context.Context) (float64, error) {
	return float64(p), nil
}

// MemoryNotificationSink keeps delivered messages per user
type MemoryNotificationSink struct {
	mu       sync.Mutex
	messages map[string][]string
}

func NewMemoryNotificationSink() *MemoryNotificationSink {
	return &MemoryNotificationSink{messages: map[string][]string{}}
}

func (s *MemoryNotificationSink) Notify(_ context.Context, userID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[userID] = append(s.messages[userID], message)
	return nil
}

func (s *MemoryNotificationSink) Messages(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages[userID]...)
}

// Recipients returns the users that received at least one message, sorted
func (s *MemoryNotificationSink) Recipients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.messages))
	for id := range s.messages {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// MemoryUserDirectory is an in-memory user lookup keyed by user ID
type MemoryUserDirectory struct {
	mu    sync.RWMutex
	users map[string]models.User
}

func NewMemoryUserDirectory() *MemoryUserDirectory {
	return &MemoryUserDirectory{users: map[string]models.User{}}
}

// Put adds or replaces a user under id
func (d *MemoryUserDirectory) Put(id string, user models.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[id] = user
}

func (d *MemoryUserDirectory) FindByID(_ context.Context, userID string) (*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	user, ok := d.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (d *MemoryUserDirectory) FindByReferralCode(_ context.Context, code string) (*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, user := range d.users {
		if user.ReferralCode != "" && user.ReferralCode == code {
			u := user
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

// ReferralOwner returns the ID of the user holding code
func (d *MemoryUserDirectory) ReferralOwner(_ context.Context, code string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for id, user := range d.users {
		if user.ReferralCode != "" && user.ReferralCode == code {
			return id, nil
		}
	}
	return "", ErrNotFound
}

func (d *MemoryUserDirectory) EnsureReferralCode(_ context.Context, userID string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.users[userID]
	if !ok {
		return "", ErrNotFound
	}
	if user.ReferralCode != "" {
		return user.ReferralCode, nil
	}
	for attempt := 0; attempt < 5; attempt++ {
		code, err := utils.GenerateResellerReferralCode()
		if err != nil {
			return "", err
		}
		if d.codeTakenLocked(code) {
			continue
		}
		user.ReferralCode = code
		d.users[userID] = user
		return code, nil
	}
	return "", errors.New("could not allocate a unique referral code")
}

func (d *MemoryUserDirectory) SetFCMToken(_ context.Context, userID, token string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.users[userID]
	if !ok {
		return ErrNotFound
	}
	user.FCMToken = token
	d.users[userID] = user
	return nil
}

func (d *MemoryUserDirectory) codeTakenLocked(code string) bool {
	for _, user := range d.users {
		if user.ReferralCode == code {
			return true
		}
	}
	return false
}

// MemoryNotificationStore is an in-memory inbox
type MemoryNotificationStore struct {
	mu   sync.Mutex
	rows []models.Notification
}

func NewMemoryNotificationStore() *MemoryNotificationStore {
	return &MemoryNotificationStore{}
}

func (s *MemoryNotificationStore) Save(_ context.Context, notification models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, notification)
	return nil
}

func (s *MemoryNotificationStore) ListForUser(_ context.Context, userID string, limit int64) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for i := len(s.rows) - 1; i >= 0 && (limit <= 0 || int64(len(out)) < limit); i-- {
		if s.rows[i].UserID == userID {
			out = append(out, s.rows[i])
		}
	}
	return out, nil
}
