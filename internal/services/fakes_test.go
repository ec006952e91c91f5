package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/campfund/backend/internal/chain"
	"github.com/campfund/backend/internal/events"
	"github.com/campfund/backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// In-memory store fakes. Every method takes the fake's lock so the
// concurrency tests exercise the same interleavings the pgx-backed
// repositories would see.

type memCampaigns struct {
	mu    sync.Mutex
	items map[uuid.UUID]*models.Campaign
}

func newMemCampaigns(cs ...*models.Campaign) *memCampaigns {
	m := &memCampaigns{items: make(map[uuid.UUID]*models.Campaign)}
	for _, c := range cs {
		m.items[c.ID] = c
	}
	return m
}

func (m *memCampaigns) GetByID(_ context.Context, id uuid.UUID) (*models.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("campaign %s not found", id)
	}
	cp := *c
	return &cp, nil
}

func (m *memCampaigns) GetByWalletAddress(_ context.Context, address string) (*models.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.items {
		if c.WalletAddress == address {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memCampaigns) AddToCurrentAmount(_ context.Context, id uuid.UUID, delta decimal.Decimal) (*models.CampaignBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("campaign %s not found", id)
	}
	c.CurrentAmount = c.CurrentAmount.Add(delta)
	return &models.CampaignBalance{
		CurrentAmount: c.CurrentAmount,
		TargetAmount:  c.TargetAmount,
		Status:        c.Status,
	}, nil
}

func (m *memCampaigns) SetCurrentAmount(_ context.Context, id uuid.UUID, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return fmt.Errorf("campaign %s not found", id)
	}
	c.CurrentAmount = amount
	return nil
}

func (m *memCampaigns) UpdateStatusIf(_ context.Context, id uuid.UUID, from, to string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return false, fmt.Errorf("campaign %s not found", id)
	}
	if c.Status != from {
		return false, nil
	}
	c.Status = to
	return true, nil
}

func (m *memCampaigns) SetServiceID(_ context.Context, id, serviceID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return fmt.Errorf("campaign %s not found", id)
	}
	sid := serviceID
	c.ServiceID = &sid
	return nil
}

func (m *memCampaigns) ListExpiredUnderfunded(_ context.Context, now time.Time) ([]models.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Campaign
	for _, c := range m.items {
		if c.Status == models.CampaignStatusActive && c.Deadline.Before(now) && c.CurrentAmount.LessThan(c.TargetAmount) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memCampaigns) ListByStatuses(_ context.Context, statuses ...string) ([]models.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Campaign
	for _, c := range m.items {
		for _, st := range statuses {
			if c.Status == st {
				out = append(out, *c)
				break
			}
		}
	}
	return out, nil
}

func (m *memCampaigns) status(id uuid.UUID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id].Status
}

func (m *memCampaigns) current(id uuid.UUID) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id].CurrentAmount
}

type memContributions struct {
	mu    sync.Mutex
	items []*models.Contribution
}

func (m *memContributions) Create(_ context.Context, c *models.Contribution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now()
	cp := *c
	m.items = append(m.items, &cp)
	return nil
}

func (m *memContributions) ListRefundable(_ context.Context, campaignID uuid.UUID) ([]models.Contribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Contribution
	for _, c := range m.items {
		if c.CampaignID == campaignID && c.Status == models.ContributionStatusConfirmed && !c.Refunded {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memContributions) MarkRefunded(_ context.Context, id uuid.UUID, refundTxRef string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.items {
		if c.ID == id && !c.Refunded {
			c.Refunded = true
			if refundTxRef != "" {
				ref := refundTxRef
				c.RefundTxRef = &ref
			}
			return true, nil
		}
	}
	return false, nil
}

func (m *memContributions) CountByAddressSince(_ context.Context, address string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.items {
		if c.FromAddress == address && c.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (m *memContributions) SumConfirmedByAddress(_ context.Context, address string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := decimal.Zero
	for _, c := range m.items {
		if c.FromAddress == address && c.Status == models.ContributionStatusConfirmed {
			sum = sum.Add(c.Amount)
		}
	}
	return sum, nil
}

func (m *memContributions) CountDistinctCampaignsByAddress(_ context.Context, address string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[uuid.UUID]struct{})
	for _, c := range m.items {
		if c.FromAddress == address {
			seen[c.CampaignID] = struct{}{}
		}
	}
	return len(seen), nil
}

func (m *memContributions) SumConfirmedByCampaign(_ context.Context, campaignID uuid.UUID) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := decimal.Zero
	for _, c := range m.items {
		if c.CampaignID == campaignID && c.Status == models.ContributionStatusConfirmed {
			sum = sum.Add(c.Amount)
		}
	}
	return sum, nil
}

func (m *memContributions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

type memLedger struct {
	mu   sync.Mutex
	refs map[string]struct{}
	rows []models.LedgerTransaction
}

func newMemLedger() *memLedger {
	return &memLedger{refs: make(map[string]struct{})}
}

func (m *memLedger) Insert(_ context.Context, t *models.LedgerTransaction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.refs[t.TxRef]; dup {
		return false, nil
	}
	m.refs[t.TxRef] = struct{}{}
	t.ID = uuid.New()
	m.rows = append(m.rows, *t)
	return true, nil
}

func (m *memLedger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memServiceStore struct {
	mu    sync.Mutex
	items []*models.Service
}

func (m *memServiceStore) Create(_ context.Context, s *models.Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	cp := *s
	m.items = append(m.items, &cp)
	return nil
}

func (m *memServiceStore) GetActiveByCampaign(_ context.Context, campaignID uuid.UUID) (*models.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.items {
		if s.CampaignID == campaignID &&
			(s.Status == models.ServiceStatusPending || s.Status == models.ServiceStatusActive) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

type memRefunds struct {
	mu    sync.Mutex
	items map[uuid.UUID]*models.Refund
}

func newMemRefunds() *memRefunds {
	return &memRefunds{items: make(map[uuid.UUID]*models.Refund)}
}

func (m *memRefunds) Create(_ context.Context, r *models.Refund) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	cp := *r
	m.items[r.ID] = &cp
	return nil
}

func (m *memRefunds) MarkProcessing(_ context.Context, id uuid.UUID) error {
	return m.setStatus(id, models.RefundStatusProcessing)
}

func (m *memRefunds) MarkCompleted(_ context.Context, id uuid.UUID, txRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return fmt.Errorf("refund %s not found", id)
	}
	r.Status = models.RefundStatusCompleted
	ref := txRef
	r.TxRef = &ref
	return nil
}

func (m *memRefunds) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return fmt.Errorf("refund %s not found", id)
	}
	r.Status = models.RefundStatusFailed
	r.Reason = reason
	return nil
}

func (m *memRefunds) HasCompletedForContribution(_ context.Context, contributionID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.items {
		if r.ContributionID == contributionID && r.Status == models.RefundStatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRefunds) setStatus(id uuid.UUID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return fmt.Errorf("refund %s not found", id)
	}
	r.Status = status
	return nil
}

func (m *memRefunds) completedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.items {
		if r.Status == models.RefundStatusCompleted {
			n++
		}
	}
	return n
}

type memAudit struct {
	mu         sync.Mutex
	logs       []models.AuditLog
	suspicious []models.SuspiciousActivity
	attempts   []models.PurchaseAttempt
}

func (m *memAudit) Log(_ context.Context, entry models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, entry)
	return nil
}

func (m *memAudit) LogSuspicious(_ context.Context, rec models.SuspiciousActivity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suspicious = append(m.suspicious, rec)
	return nil
}

func (m *memAudit) LogPurchaseAttempt(_ context.Context, a models.PurchaseAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, a)
	return nil
}

func (m *memAudit) attemptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attempts)
}

// memRegistry mirrors the redis SETNX semantics.
type memRegistry struct {
	mu   sync.Mutex
	refs map[string]struct{}
}

func newMemRegistry() *memRegistry {
	return &memRegistry{refs: make(map[string]struct{})}
}

func (m *memRegistry) Claim(_ context.Context, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.refs[ref]; held {
		return false, nil
	}
	m.refs[ref] = struct{}{}
	return true, nil
}

func (m *memRegistry) Release(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.refs, ref)
	return nil
}

func (m *memRegistry) held(ref string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.refs[ref]
	return ok
}

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, _ string, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *capturePublisher) typesSeen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// fakeGateway hands out deterministic transfer references and balances.
type fakeGateway struct {
	mu          sync.Mutex
	transferErr error
	transfers   []fakeTransfer
	balances    map[string]decimal.Decimal
	seq         int
}

type fakeTransfer struct {
	CampaignID uuid.UUID
	To         string
	Amount     decimal.Decimal
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{balances: make(map[string]decimal.Decimal)}
}

func (g *fakeGateway) ResolveAddress(_ context.Context, campaignID uuid.UUID) (string, error) {
	return "wallet-" + campaignID.String()[:8], nil
}

func (g *fakeGateway) Transfer(_ context.Context, campaignID uuid.UUID, toAddress string, amount decimal.Decimal) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.transferErr != nil {
		return "", g.transferErr
	}
	g.seq++
	g.transfers = append(g.transfers, fakeTransfer{CampaignID: campaignID, To: toAddress, Amount: amount})
	return fmt.Sprintf("%d:%064x", g.seq, g.seq), nil
}

func (g *fakeGateway) GetBalance(_ context.Context, address string) (decimal.Decimal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balances[address], nil
}

func (g *fakeGateway) transferCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.transfers)
}

func (g *fakeGateway) setTransferErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transferErr = err
}

type fakeEnriched struct {
	mu      sync.Mutex
	details map[string]*chain.TxDetail
	err     error
}

func newFakeEnriched() *fakeEnriched {
	return &fakeEnriched{details: make(map[string]*chain.TxDetail)}
}

func (f *fakeEnriched) GetTransaction(_ context.Context, txRef string) (*chain.TxDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	d, ok := f.details[txRef]
	if !ok {
		return nil, chain.ErrTxNotFound
	}
	return d, nil
}

type fakeRaw struct {
	mu      sync.Mutex
	details map[string]*chain.TxDetail
	calls   int
}

func newFakeRaw() *fakeRaw {
	return &fakeRaw{details: make(map[string]*chain.TxDetail)}
}

func (f *fakeRaw) GetTransaction(_ context.Context, _, txRef string) (*chain.TxDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	d, ok := f.details[txRef]
	if !ok {
		return nil, chain.ErrTxNotFound
	}
	return d, nil
}

type fakeMarket struct {
	mu        sync.Mutex
	submitErr error
	reject    bool
	submits   int
}

func (f *fakeMarket) Submit(_ context.Context, campaign *models.Campaign, paymentTxRef string) (*SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	if f.reject {
		return &SubmitResult{Success: false, Error: "rejected"}, nil
	}
	return &SubmitResult{Success: true, ServiceID: fmt.Sprintf("svc-%d", f.submits)}, nil
}

func (f *fakeMarket) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits
}
