package service

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/GTDGit/event_marketplace_api/internal/models"
	"github.com/GTDGit/event_marketplace_api/internal/notify"
	"github.com/GTDGit/event_marketplace_api/internal/repository"
	"github.com/GTDGit/event_marketplace_api/internal/sse"
)

// memUsers mirrors the guarded statements of repository.UserRepository.
// lockErr and resetErr fail Lock and ResetUsage while set; planOf stands in
// for the join against the active subscription.
type memUsers struct {
	mu       sync.Mutex
	nextID   int
	rows     map[int]*models.User
	lockErr  error
	resetErr error
	planOf   func(supplierID int) string
}

func newMemUsers() *memUsers {
	return &memUsers{rows: map[int]*models.User{}}
}

func (m *memUsers) add(u models.User) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	u.ID = m.nextID
	if u.Language == "" {
		u.Language = models.LangEnglish
	}
	m.rows[u.ID] = &u
	cp := u
	return &cp
}

func (m *memUsers) snapshot(id int) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rows[id]
}

func (m *memUsers) GetByID(_ context.Context, id int) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByPhone(_ context.Context, phone string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.rows {
		if u.Phone == phone {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memUsers) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.Phone == u.Phone {
			*u = *existing
			return nil
		}
	}
	m.nextID++
	u.ID = m.nextID
	u.Language = u.Language.Normalize()
	cp := *u
	m.rows[u.ID] = &cp
	return nil
}

func (m *memUsers) increment(id, limit int, counter func(*models.User) *int, reason string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok || u.IsLocked {
		return nil, sql.ErrNoRows
	}
	c := counter(u)
	*c = *c + 1
	if *c >= limit {
		u.IsLocked = true
		r := reason
		u.LockReason = &r
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) IncrementContactCount(_ context.Context, id, limit int) (*models.User, error) {
	return m.increment(id, limit, func(u *models.User) *int { return &u.ContactCount }, models.LockReasonContactLimit)
}

func (m *memUsers) IncrementBookingCount(_ context.Context, id, limit int) (*models.User, error) {
	return m.increment(id, limit, func(u *models.User) *int { return &u.BookingCount }, models.LockReasonBookingLimit)
}

func (m *memUsers) DecrementContactCount(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.rows[id]; ok && u.ContactCount > 0 {
		u.ContactCount--
	}
	return nil
}

func (m *memUsers) DecrementBookingCount(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.rows[id]; ok && u.BookingCount > 0 {
		u.BookingCount--
	}
	return nil
}

func (m *memUsers) Lock(_ context.Context, id int, reason string) (*models.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lockErr != nil {
		return nil, false, m.lockErr
	}
	u, ok := m.rows[id]
	if !ok {
		return nil, false, sql.ErrNoRows
	}
	was := u.IsLocked
	u.IsLocked = true
	r := reason
	u.LockReason = &r
	cp := *u
	return &cp, !was, nil
}

func (m *memUsers) Unlock(_ context.Context, id int) (*models.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return nil, false, sql.ErrNoRows
	}
	if !u.IsLocked {
		cp := *u
		return &cp, false, nil
	}
	resetUser(u)
	cp := *u
	return &cp, true, nil
}

func (m *memUsers) ResetUsage(_ context.Context, id int) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resetErr != nil {
		return nil, m.resetErr
	}
	u, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	resetUser(u)
	cp := *u
	return &cp, nil
}

func resetUser(u *models.User) {
	u.IsLocked = false
	u.LockReason = nil
	u.LockExpiryDate = nil
	u.ContactCount = 0
	u.BookingCount = 0
}

func (m *memUsers) ListNeedingAttention(_ context.Context, t models.AttentionThresholds, limit int) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.User
	for _, u := range m.rows {
		if u.Role != models.RoleSupplier {
			continue
		}
		contactThreshold := t.ContactDefault
		if m.planOf != nil {
			if v, ok := t.ContactByPlan[m.planOf(u.ID)]; ok {
				contactThreshold = v
			}
		}
		if u.IsLocked || u.ContactCount >= contactThreshold || u.BookingCount >= t.Booking {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memUsers) SetRole(_ context.Context, id int, role models.Role) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	u.Role = role
	cp := *u
	return &cp, nil
}

func (m *memUsers) CountLocked(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, u := range m.rows {
		if u.Role == models.RoleSupplier && u.IsLocked {
			n++
		}
	}
	return n, nil
}

type memServices struct {
	mu     sync.Mutex
	nextID int
	rows   map[int]*models.Service
}

func newMemServices() *memServices {
	return &memServices{rows: map[int]*models.Service{}}
}

func (m *memServices) GetByID(_ context.Context, id int) (*models.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (m *memServices) Create(_ context.Context, s *models.Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s.ID = m.nextID
	cp := *s
	m.rows[s.ID] = &cp
	return nil
}

func (m *memServices) ListBySupplier(_ context.Context, supplierID int) ([]*models.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Service
	for _, s := range m.rows {
		if s.SupplierID == supplierID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memServices) PublishPrice(_ context.Context, id int, q models.QuotedPrice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return sql.ErrNoRows
	}
	amount := q.Amount
	s.Price = &amount
	s.PriceAvailable = true
	if q.Currency != "" {
		s.PriceCurrency = q.Currency
	}
	s.PriceType = models.PriceFixed
	if q.PriceType != "" {
		s.PriceType = q.PriceType
	}
	return nil
}

type memBookings struct {
	mu        sync.Mutex
	nextID    int
	rows      map[int]*models.Booking
	createErr error
}

func newMemBookings() *memBookings {
	return &memBookings{rows: map[int]*models.Booking{}}
}

func (m *memBookings) insert(b *models.Booking) error {
	if b.ContactRequestID != nil {
		for _, existing := range m.rows {
			if existing.ContactRequestID != nil && *existing.ContactRequestID == *b.ContactRequestID {
				return repository.ErrStaleState
			}
		}
	}
	m.nextID++
	b.ID = m.nextID
	cp := *b
	m.rows[b.ID] = &cp
	return nil
}

func (m *memBookings) Create(_ context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	return m.insert(b)
}

func (m *memBookings) GetByID(_ context.Context, id int) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *b
	return &cp, nil
}

func (m *memBookings) list(match func(*models.Booking) bool) ([]*models.Booking, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Booking
	for _, b := range m.rows {
		if match(b) {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (m *memBookings) ListByClient(_ context.Context, clientID, _, _ int) ([]*models.Booking, int, error) {
	return m.list(func(b *models.Booking) bool { return b.ClientID == clientID })
}

func (m *memBookings) ListBySupplier(_ context.Context, supplierID, _, _ int) ([]*models.Booking, int, error) {
	return m.list(func(b *models.Booking) bool { return b.SupplierID == supplierID })
}

func (m *memBookings) UpdateStatus(_ context.Context, id int, status models.BookingStatus) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	b.Status = status
	cp := *b
	return &cp, nil
}

func (m *memBookings) CancelPending(_ context.Context, id int) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok || b.Status != models.BookingPending {
		return nil, repository.ErrStaleState
	}
	b.Status = models.BookingCancelled
	cp := *b
	return &cp, nil
}

// memRequests shares memBookings so conversions insert the booking in the
// same critical section, like the repository transaction.
type memRequests struct {
	mu          sync.Mutex
	nextID      int
	rows        map[int]*models.ContactRequest
	bookings    *memBookings
	markErr     error
	convertHook func()
}

func newMemRequests(bookings *memBookings) *memRequests {
	return &memRequests{rows: map[int]*models.ContactRequest{}, bookings: bookings}
}

func (m *memRequests) Create(_ context.Context, cr *models.ContactRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	cr.ID = m.nextID
	if cr.Status == "" {
		cr.Status = models.ContactPending
	}
	cp := *cr
	m.rows[cr.ID] = &cp
	return nil
}

func (m *memRequests) GetByID(_ context.Context, id int) (*models.ContactRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cr, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *cr
	cp.Hydrate()
	return &cp, nil
}

func (m *memRequests) list(match func(*models.ContactRequest) bool) ([]*models.ContactRequest, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ContactRequest
	for _, cr := range m.rows {
		if match(cr) {
			cp := *cr
			cp.Hydrate()
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (m *memRequests) ListBySupplier(_ context.Context, supplierID, _, _ int) ([]*models.ContactRequest, int, error) {
	return m.list(func(cr *models.ContactRequest) bool { return cr.SupplierID == supplierID })
}

func (m *memRequests) ListByClient(_ context.Context, clientID, _, _ int) ([]*models.ContactRequest, int, error) {
	return m.list(func(cr *models.ContactRequest) bool { return cr.ClientID == clientID })
}

func (m *memRequests) GetLatest(_ context.Context, clientID, supplierID, serviceID int) (*models.ContactRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.ContactRequest
	for _, cr := range m.rows {
		if cr.ClientID == clientID && cr.SupplierID == supplierID && cr.ServiceID == serviceID {
			if latest == nil || cr.ID > latest.ID {
				latest = cr
			}
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	cp := *latest
	cp.Hydrate()
	return &cp, nil
}

func (m *memRequests) Respond(_ context.Context, id int, status models.ContactRequestStatus, quote *models.QuotedPrice) (*models.ContactRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cr, ok := m.rows[id]
	if !ok || cr.Status != models.ContactPending {
		return nil, repository.ErrStaleState
	}
	cr.Status = status
	cr.SetQuote(quote)
	cp := *cr
	cp.Hydrate()
	return &cp, nil
}

func (m *memRequests) ConvertToBooking(_ context.Context, requestID int, b *models.Booking) error {
	if m.convertHook != nil {
		m.convertHook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cr, ok := m.rows[requestID]
	if !ok || cr.Status != models.ContactAccepted || cr.ConvertedToBooking {
		return repository.ErrStaleState
	}
	m.bookings.mu.Lock()
	defer m.bookings.mu.Unlock()
	if err := m.bookings.insert(b); err != nil {
		return err
	}
	cr.ConvertedToBooking = true
	return nil
}

func (m *memRequests) MarkConverted(_ context.Context, id int) (bool, error) {
	if m.markErr != nil {
		return false, m.markErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cr, ok := m.rows[id]
	if !ok || cr.ConvertedToBooking {
		return false, nil
	}
	cr.ConvertedToBooking = true
	return true, nil
}

func (m *memRequests) ReconcileConverted(_ context.Context, limit int) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings.mu.Lock()
	defer m.bookings.mu.Unlock()
	var ids []int
	for _, b := range m.bookings.rows {
		if b.ContactRequestID == nil {
			continue
		}
		cr, ok := m.rows[*b.ContactRequestID]
		if !ok || cr.ConvertedToBooking {
			continue
		}
		cr.ConvertedToBooking = true
		ids = append(ids, cr.ID)
		if limit > 0 && len(ids) >= limit {
			break
		}
	}
	return ids, nil
}

// memSubscriptions mirrors repository.SubscriptionRepository including the
// supplier_synced bookkeeping. replaceErr fails Replace while set.
type memSubscriptions struct {
	mu         sync.Mutex
	nextID     int
	rows       map[int]*models.Subscription
	replaceErr error
}

func newMemSubscriptions() *memSubscriptions {
	return &memSubscriptions{rows: map[int]*models.Subscription{}}
}

func (m *memSubscriptions) insert(s *models.Subscription) {
	m.nextID++
	s.ID = m.nextID
	s.SupplierSynced = false
	s.UpdatedAt = time.Now()
	cp := *s
	m.rows[s.ID] = &cp
}

// end moves s out of active. synced is the new supplier_synced value.
func (m *memSubscriptions) end(s *models.Subscription, status models.SubscriptionStatus, synced bool) {
	s.Status = status
	s.SupplierSynced = synced
	s.UpdatedAt = time.Now()
}

func (m *memSubscriptions) activePlan(supplierID int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.activeFor(supplierID); s != nil {
		return s.Plan
	}
	return ""
}

func (m *memSubscriptions) activeFor(supplierID int) *models.Subscription {
	for _, s := range m.rows {
		if s.SupplierID == supplierID && s.Status == models.SubscriptionActive {
			return s
		}
	}
	return nil
}

func (m *memSubscriptions) Replace(_ context.Context, s *models.Subscription) (*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceErr != nil {
		return nil, m.replaceErr
	}
	var prev *models.Subscription
	if cur := m.activeFor(s.SupplierID); cur != nil {
		m.end(cur, models.SubscriptionExpired, true)
		cp := *cur
		prev = &cp
	}
	m.insert(s)
	return prev, nil
}

func (m *memSubscriptions) RollOver(_ context.Context, expiredID int, next *models.Subscription) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rows[expiredID]
	if !ok || cur.Status != models.SubscriptionActive {
		return false, nil
	}
	m.end(cur, models.SubscriptionExpired, true)
	m.insert(next)
	return true, nil
}

func (m *memSubscriptions) Create(_ context.Context, s *models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.Status == models.SubscriptionActive && m.activeFor(s.SupplierID) != nil {
		return repository.ErrStaleState
	}
	m.insert(s)
	return nil
}

func (m *memSubscriptions) GetByID(_ context.Context, id int) (*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (m *memSubscriptions) GetActiveBySupplier(_ context.Context, supplierID int) (*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.activeFor(supplierID)
	if s == nil {
		return nil, sql.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (m *memSubscriptions) MarkExpired(_ context.Context, id int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok || s.Status != models.SubscriptionActive {
		return false, nil
	}
	m.end(s, models.SubscriptionExpired, false)
	return true, nil
}

func (m *memSubscriptions) Cancel(_ context.Context, id int, reason string, at time.Time) (*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok || s.Status != models.SubscriptionActive {
		return nil, repository.ErrStaleState
	}
	m.end(s, models.SubscriptionCancelled, false)
	s.AutoRenew = false
	r := reason
	s.CancelReason = &r
	s.CancelledAt = &at
	cp := *s
	return &cp, nil
}

func (m *memSubscriptions) SetAutoRenew(_ context.Context, id int, autoRenew bool) (*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok || s.Status != models.SubscriptionActive {
		return nil, repository.ErrStaleState
	}
	s.AutoRenew = autoRenew
	cp := *s
	return &cp, nil
}

func (m *memSubscriptions) Extend(_ context.Context, id, days int, note *models.SubscriptionNote) (*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	s.EndDate = s.EndDate.AddDate(0, 0, days)
	n := *note
	n.SubscriptionID = id
	s.Notes = append(s.Notes, n)
	cp := *s
	return &cp, nil
}

func (m *memSubscriptions) Update(_ context.Context, id int, u models.SubscriptionUpdate, note *models.SubscriptionNote) (*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if u.Status != nil && *u.Status != s.Status {
		if *u.Status == models.SubscriptionActive {
			if other := m.activeFor(s.SupplierID); other != nil && other.ID != id {
				return nil, repository.ErrStaleState
			}
		}
		if *u.Status == models.SubscriptionCancelled {
			at := time.Now()
			s.CancelledAt = &at
		}
		m.end(s, *u.Status, false)
	}
	if u.Plan != nil {
		s.Plan = *u.Plan
	}
	if u.Amount != nil {
		s.Amount = *u.Amount
	}
	if u.EndDate != nil {
		s.EndDate = *u.EndDate
	}
	if u.AutoRenew != nil {
		s.AutoRenew = *u.AutoRenew
	}
	n := *note
	n.SubscriptionID = id
	s.Notes = append(s.Notes, n)
	cp := *s
	return &cp, nil
}

func (m *memSubscriptions) MarkSupplierSynced(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.rows[id]; ok {
		s.SupplierSynced = true
	}
	return nil
}

func (m *memSubscriptions) ListUnsynced(_ context.Context, olderThan time.Time, limit int) ([]*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Subscription
	for _, s := range m.rows {
		if !s.SupplierSynced && s.UpdatedAt.Before(olderThan) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memSubscriptions) ListActiveEndingBefore(_ context.Context, t time.Time) ([]*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Subscription
	for _, s := range m.rows {
		if s.Status == models.SubscriptionActive && s.EndDate.Before(t) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memSubscriptions) ListAll(_ context.Context, f models.SubscriptionFilter) ([]*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Subscription
	for _, s := range m.rows {
		if f.Status != "" && string(s.Status) != f.Status {
			continue
		}
		if f.Plan != "" && s.Plan != f.Plan {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memSubscriptions) List(ctx context.Context, f models.SubscriptionFilter) ([]*models.Subscription, int, error) {
	out, err := m.ListAll(ctx, f)
	return out, len(out), err
}

func (m *memSubscriptions) Stats(_ context.Context, soon time.Time) (*models.SubscriptionStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := &models.SubscriptionStats{
		ByStatus:      map[string]int{},
		ByPlan:        map[string]int{},
		RevenueByPlan: map[string]float64{},
	}
	for _, s := range m.rows {
		st.Total++
		st.ByStatus[string(s.Status)]++
		st.ByPlan[s.Plan]++
		if s.Status == models.SubscriptionActive {
			st.ActiveRevenue += s.Amount
			st.RevenueByPlan[s.Plan] += s.Amount
			if s.EndDate.Before(soon) {
				st.ExpiringSoon++
			}
		}
	}
	return st, nil
}

type memChats struct {
	mu    sync.Mutex
	chats map[[2]int]*models.Chat
}

func newMemChats() *memChats {
	return &memChats{chats: map[[2]int]*models.Chat{}}
}

func (m *memChats) Ensure(_ context.Context, a, b int, contactRequestID *int) (*models.Chat, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	low, high := models.OrderedPair(a, b)
	key := [2]int{low, high}
	if c, ok := m.chats[key]; ok {
		return c, false, nil
	}
	c := &models.Chat{ID: len(m.chats) + 1, ParticipantLow: low, ParticipantHigh: high, ContactRequestID: contactRequestID}
	m.chats[key] = c
	return c, true, nil
}

type sentNotification struct {
	Phone string
	Key   notify.TemplateKey
	Args  []any
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (r *recordingNotifier) Notify(_ context.Context, phone string, _ models.Language, key notify.TemplateKey, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentNotification{Phone: phone, Key: key, Args: args})
}

func (r *recordingNotifier) count(key notify.TemplateKey) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sent {
		if s.Key == key {
			n++
		}
	}
	return n
}

func (r *recordingNotifier) last(key notify.TemplateKey) (sentNotification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.sent) - 1; i >= 0; i-- {
		if r.sent[i].Key == key {
			return r.sent[i], true
		}
	}
	return sentNotification{}, false
}

type recordingEvents struct {
	mu     sync.Mutex
	events []sse.EventType
}

func (r *recordingEvents) NotifySupplier(e sse.EventType, _ *models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingEvents) NotifySubscription(e sse.EventType, _ *models.Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingEvents) count(e sse.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.events {
		if got == e {
			n++
		}
	}
	return n
}

type memOTPs struct {
	codes map[string]string
}

func (m *memOTPs) Save(_ context.Context, phone, code string, _ time.Duration) error {
	if m.codes == nil {
		m.codes = map[string]string{}
	}
	m.codes[phone] = code
	return nil
}

func (m *memOTPs) Verify(_ context.Context, phone, code string) (bool, error) {
	want, ok := m.codes[phone]
	if !ok || want != code {
		return false, nil
	}
	delete(m.codes, phone)
	return true, nil
}

type fixedLimiter struct {
	allowed int
	calls   int
}

func (f *fixedLimiter) Allow(_ context.Context, _ string) (bool, time.Duration, error) {
	f.calls++
	return f.calls <= f.allowed, time.Minute, nil
}

// testEnv wires every service over the in-memory stores.
type testEnv struct {
	users    *memUsers
	services *memServices
	bookings *memBookings
	requests *memRequests
	subs     *memSubscriptions
	chats    *memChats
	joins    *memJoinRequests
	ratings  *memRatings
	notifier *recordingNotifier
	events   *recordingEvents

	accounts      *AccountService
	contacts      *ContactRequestService
	bookingSvc    *BookingService
	subscriptions *SubscriptionService
	catalog       *CatalogService
	joinSvc       *JoinRequestService
	ratingSvc     *RatingService
}

func newTestEnv() *testEnv {
	e := &testEnv{
		users:    newMemUsers(),
		services: newMemServices(),
		bookings: newMemBookings(),
		subs:     newMemSubscriptions(),
		chats:    newMemChats(),
		joins:    newMemJoinRequests(),
		notifier: &recordingNotifier{},
		events:   &recordingEvents{},
	}
	e.requests = newMemRequests(e.bookings)
	e.users.planOf = e.subs.activePlan
	e.accounts = NewAccountService(e.users, e.subs, e.notifier, e.events, nil)
	e.contacts = NewContactRequestService(e.requests, e.services, e.users, e.chats, e.accounts, e.notifier, nil, "JOD")
	e.bookingSvc = NewBookingService(e.bookings, e.services, e.requests, e.users, e.accounts, e.notifier, nil, "JOD")
	e.subscriptions = NewSubscriptionService(e.subs, e.users, e.requests, e.accounts, e.notifier, e.events, nil)
	e.catalog = NewCatalogService(e.services, "JOD")
	e.ratings = newMemRatings(e.bookings, e.requests)
	e.joinSvc = NewJoinRequestService(e.joins, e.users, e.notifier)
	e.ratingSvc = NewRatingService(e.ratings, e.services)
	return e
}

func (e *testEnv) supplier(t testingT) *models.User {
	t.Helper()
	return e.users.add(models.User{Name: "Supplier", Phone: fmt.Sprintf("+96279%07d", e.users.nextID+1), Role: models.RoleSupplier})
}

func (e *testEnv) client(t testingT) *models.User {
	t.Helper()
	return e.users.add(models.User{Name: "Client", Phone: fmt.Sprintf("+96277%07d", e.users.nextID+1), Role: models.RoleClient})
}

func (e *testEnv) service(t testingT, s models.Service) *models.Service {
	t.Helper()
	if err := e.services.Create(context.Background(), &s); err != nil {
		t.Fatalf("create service: %v", err)
	}
	return &s
}

type testingT interface {
	Helper()
	Fatalf(format string, args ...any)
}

func actorOf(u *models.User) Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

func price(v float64) *float64 { return &v }

// openRange makes every day of the next year available.
func openRange() models.Availability {
	now := time.Now().UTC()
	return models.Availability{DateRange: &models.DateRange{From: now.AddDate(0, 0, -1), To: now.AddDate(1, 0, 0)}}
}

// memJoinRequests mirrors repository.JoinRequestRepository, including the
// unique pending-phone index.
type memJoinRequests struct {
	mu     sync.Mutex
	nextID int
	rows   map[int]*models.JoinRequest
}

func newMemJoinRequests() *memJoinRequests {
	return &memJoinRequests{rows: map[int]*models.JoinRequest{}}
}

func (m *memJoinRequests) Create(_ context.Context, jr *models.JoinRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.Phone == jr.Phone && existing.Status == models.JoinPending {
			return repository.ErrStaleState
		}
	}
	m.nextID++
	jr.ID = m.nextID
	jr.Status = models.JoinPending
	jr.CreatedAt = time.Now()
	jr.UpdatedAt = jr.CreatedAt
	cp := *jr
	m.rows[jr.ID] = &cp
	return nil
}

func (m *memJoinRequests) GetByID(_ context.Context, id int) (*models.JoinRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	jr, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *jr
	return &cp, nil
}

func (m *memJoinRequests) List(_ context.Context, f models.JoinRequestFilter) ([]*models.JoinRequest, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.JoinRequest
	for _, jr := range m.rows {
		if f.Status == "" || string(jr.Status) == f.Status {
			cp := *jr
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (m *memJoinRequests) SetStatus(_ context.Context, id int, from []models.JoinRequestStatus, to models.JoinRequestStatus, reviewerID int, userID *int) (*models.JoinRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	jr, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrStaleState
	}
	allowed := false
	for _, s := range from {
		if jr.Status == s {
			allowed = true
		}
	}
	if !allowed {
		return nil, repository.ErrStaleState
	}
	now := time.Now()
	jr.Status = to
	jr.ReviewedBy = &reviewerID
	jr.ReviewedAt = &now
	if userID != nil {
		uid := *userID
		jr.UserID = &uid
	}
	cp := *jr
	return &cp, nil
}

// memRatings derives eligibility from the shared booking and request fakes.
type memRatings struct {
	mu       sync.Mutex
	nextID   int
	rows     map[[2]int]*models.Rating
	bookings *memBookings
	requests *memRequests
}

func newMemRatings(bookings *memBookings, requests *memRequests) *memRatings {
	return &memRatings{rows: map[[2]int]*models.Rating{}, bookings: bookings, requests: requests}
}

func (m *memRatings) Upsert(_ context.Context, r *models.Rating) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]int{r.ServiceID, r.UserID}
	now := time.Now()
	if existing, ok := m.rows[key]; ok {
		existing.Score = r.Score
		existing.Comment = r.Comment
		existing.UpdatedAt = now
		*r = *existing
		return nil
	}
	m.nextID++
	r.ID = m.nextID
	r.CreatedAt = now
	r.UpdatedAt = now
	cp := *r
	m.rows[key] = &cp
	return nil
}

func (m *memRatings) GetByUser(_ context.Context, serviceID, userID int) (*models.Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[[2]int{serviceID, userID}]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *r
	return &cp, nil
}

func (m *memRatings) ListByService(_ context.Context, serviceID, _, limit int) ([]*models.Rating, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Rating
	total := 0
	for key, r := range m.rows {
		if key[0] != serviceID {
			continue
		}
		total++
		if limit <= 0 || len(out) < limit {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, total, nil
}

func (m *memRatings) Summary(_ context.Context, serviceID int) (*models.RatingSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &models.RatingSummary{ServiceID: serviceID}
	sum := 0
	for key, r := range m.rows {
		if key[0] == serviceID {
			s.Count++
			sum += r.Score
		}
	}
	if s.Count > 0 {
		s.Average = math.Round(float64(sum)/float64(s.Count)*10) / 10
	}
	return s, nil
}

func (m *memRatings) HasConfirmedBooking(_ context.Context, serviceID, clientID int) (bool, error) {
	list, _, _ := m.bookings.ListByClient(context.Background(), clientID, 1, 0)
	for _, b := range list {
		if b.ServiceID == serviceID && b.Status == models.BookingConfirmed {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRatings) HasAnsweredContact(_ context.Context, serviceID, clientID int) (bool, error) {
	list, _, _ := m.requests.ListByClient(context.Background(), clientID, 1, 0)
	for _, cr := range list {
		if cr.ServiceID == serviceID && (cr.Status == models.ContactAccepted || cr.ConvertedToBooking) {
			return true, nil
		}
	}
	return false, nil
}
