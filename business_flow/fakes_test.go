package businessflow

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/scrapeflow/scrapeflow-api/app/services"
	"github.com/scrapeflow/scrapeflow-api/models"
	"github.com/scrapeflow/scrapeflow-api/utils"
)

// In-memory doubles for the repository and provider interfaces. They keep
// the same read/write semantics the GORM implementations have (misses return
// nil, reads return copies) so flow tests exercise the real branching.

type fakeTxRunner struct {
	err  error
	runs int
}

func (r *fakeTxRunner) Run(ctx context.Context, fn func(context.Context) error) error {
	r.runs++
	if r.err != nil {
		return r.err
	}
	return fn(ctx)
}

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uint]*models.User)}
}

func (r *fakeUserRepo) addUser(u models.User) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	u.ID = r.nextID
	if u.UUID == uuid.Nil {
		u.UUID = uuid.New()
	}
	r.users[u.ID] = &u
	out := u
	return &out
}

func (r *fakeUserRepo) ByID(ctx context.Context, id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	out := *u
	return &out, nil
}

func (r *fakeUserRepo) ByFilter(ctx context.Context, filter models.UserFilter, orderBy string, limit, offset int) ([]*models.User, error) {
	return nil, nil
}

func (r *fakeUserRepo) Save(ctx context.Context, entity *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	entity.ID = r.nextID
	if entity.UUID == uuid.Nil {
		entity.UUID = uuid.New()
	}
	stored := *entity
	r.users[entity.ID] = &stored
	return nil
}

func (r *fakeUserRepo) SaveBatch(ctx context.Context, entities []*models.User) error {
	for _, e := range entities {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeUserRepo) Count(ctx context.Context, filter models.UserFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.users)), nil
}

func (r *fakeUserRepo) Exists(ctx context.Context, filter models.UserFilter) (bool, error) {
	n, _ := r.Count(ctx, filter)
	return n > 0, nil
}

func (r *fakeUserRepo) ByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			out := *u
			return &out, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) ByUUID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.UUID.String() == id {
			out := *u
			return &out, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) ByBillingCustomerID(ctx context.Context, billingCustomerID string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.BillingCustomerID != nil && *u.BillingCustomerID == billingCustomerID {
			out := *u
			return &out, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[user.ID]
	if !ok {
		return nil
	}
	credits := stored.Credits
	*stored = user
	// The balance cache is only ever mutated through the guarded helpers
	stored.Credits = credits
	return nil
}

func (r *fakeUserRepo) UpdateLastLogin(ctx context.Context, userID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		u.LastLoginAt = utils.UTCNowPtr()
	}
	return nil
}

func (r *fakeUserRepo) DebitCredits(ctx context.Context, userID uint, amount int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok || u.Credits < amount {
		return false, nil
	}
	u.Credits -= amount
	return true, nil
}

func (r *fakeUserRepo) CreditCredits(ctx context.Context, userID uint, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		u.Credits += amount
	}
	return nil
}

func (r *fakeUserRepo) credits(userID uint) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		return u.Credits
	}
	return 0
}

type fakeCampaignRepo struct {
	mu        sync.Mutex
	nextID    uint
	campaigns map[uint]*models.Campaign
	updates   int

	// updateErr is returned from Update while updateErrTimes > 0
	updateErr      error
	updateErrTimes int
}

func newFakeCampaignRepo() *fakeCampaignRepo {
	return &fakeCampaignRepo{campaigns: make(map[uint]*models.Campaign)}
}

func (r *fakeCampaignRepo) ByID(ctx context.Context, id uint) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, nil
	}
	out := *c
	return &out, nil
}

func (r *fakeCampaignRepo) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	return nil, nil
}

func (r *fakeCampaignRepo) Save(ctx context.Context, entity *models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	entity.ID = r.nextID
	if entity.UUID == uuid.Nil {
		entity.UUID = uuid.New()
	}
	if entity.Status == "" {
		entity.Status = models.CampaignStatusPending
	}
	if entity.CreatedAt == nil {
		entity.CreatedAt = utils.UTCNowPtr()
	}
	stored := *entity
	r.campaigns[entity.ID] = &stored
	return nil
}

func (r *fakeCampaignRepo) SaveBatch(ctx context.Context, entities []*models.Campaign) error {
	for _, e := range entities {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeCampaignRepo) Count(ctx context.Context, filter models.CampaignFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.campaigns {
		if filter.UserID != nil && c.UserID != *filter.UserID {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		n++
	}
	return n, nil
}

func (r *fakeCampaignRepo) Exists(ctx context.Context, filter models.CampaignFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *fakeCampaignRepo) ByUUID(ctx context.Context, id string) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.campaigns {
		if c.UUID.String() == id {
			out := *c
			return &out, nil
		}
	}
	return nil, nil
}

func (r *fakeCampaignRepo) ByUUIDAndUser(ctx context.Context, id string, userID uint) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.campaigns {
		if c.UUID.String() == id && c.UserID == userID {
			out := *c
			return &out, nil
		}
	}
	return nil, nil
}

func (r *fakeCampaignRepo) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Campaign
	for _, c := range r.campaigns {
		if c.UserID == userID {
			copied := *c
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return paginate(out, limit, offset), nil
}

func (r *fakeCampaignRepo) ListByStatus(ctx context.Context, status models.CampaignStatus, limit, offset int) ([]*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Campaign
	for _, c := range r.campaigns {
		if c.Status == status {
			copied := *c
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, limit, offset), nil
}

func (r *fakeCampaignRepo) Update(ctx context.Context, campaign models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErrTimes > 0 {
		r.updateErrTimes--
		return r.updateErr
	}
	r.updates++
	stored := campaign
	r.campaigns[campaign.ID] = &stored
	return nil
}

func (r *fakeCampaignRepo) UpdateFromActive(ctx context.Context, campaign models.Campaign) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.campaigns[campaign.ID]
	if !ok || stored.Status.IsTerminal() {
		return false, nil
	}
	r.updates++
	copied := campaign
	r.campaigns[campaign.ID] = &copied
	return true, nil
}

func (r *fakeCampaignRepo) CountByUserAndStatus(ctx context.Context, userID uint, status models.CampaignStatus) (int64, error) {
	return r.Count(ctx, models.CampaignFilter{UserID: &userID, Status: &status})
}

func (r *fakeCampaignRepo) stored(id uint) *models.Campaign {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.campaigns[id]; ok {
		out := *c
		return &out
	}
	return nil
}

type fakeCreditRepo struct {
	mu      sync.Mutex
	nextID  uint
	entries []*models.CreditTransaction
}

func newFakeCreditRepo() *fakeCreditRepo {
	return &fakeCreditRepo{}
}

func (r *fakeCreditRepo) Save(ctx context.Context, entry *models.CreditTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	entry.ID = r.nextID
	if entry.UUID == uuid.Nil {
		entry.UUID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = utils.UTCNow()
	}
	stored := *entry
	r.entries = append(r.entries, &stored)
	return nil
}

func (r *fakeCreditRepo) ByID(ctx context.Context, id uint) (*models.CreditTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == id {
			out := *e
			return &out, nil
		}
	}
	return nil, nil
}

func (r *fakeCreditRepo) ByFilter(ctx context.Context, filter models.CreditTransactionFilter, orderBy string, limit, offset int) ([]*models.CreditTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.CreditTransaction
	for _, e := range r.entries {
		if filter.UserID != nil && e.UserID != *filter.UserID {
			continue
		}
		if filter.Type != nil && e.Type != *filter.Type {
			continue
		}
		copied := *e
		out = append(out, &copied)
	}
	return paginate(out, limit, offset), nil
}

func (r *fakeCreditRepo) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.CreditTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.CreditTransaction
	for _, e := range r.entries {
		if e.UserID == userID {
			copied := *e
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return paginate(out, limit, offset), nil
}

func (r *fakeCreditRepo) ByCorrelationID(ctx context.Context, correlationID uuid.UUID) ([]*models.CreditTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.CreditTransaction
	for _, e := range r.entries {
		if e.CorrelationID != nil && *e.CorrelationID == correlationID {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeCreditRepo) SumAbsByType(ctx context.Context, userID uint, txType models.CreditTransactionType) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, e := range r.entries {
		if e.UserID != userID || e.Type != txType {
			continue
		}
		if e.Amount < 0 {
			sum -= e.Amount
		} else {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (r *fakeCreditRepo) Count(ctx context.Context, filter models.CreditTransactionFilter) (int64, error) {
	entries, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return 0, err
	}
	return int64(len(entries)), nil
}

func (r *fakeCreditRepo) byType(userID uint, txType models.CreditTransactionType) []*models.CreditTransaction {
	out, _ := r.ByFilter(context.Background(), models.CreditTransactionFilter{
		UserID: &userID,
		Type:   &txType,
	}, "", 0, 0)
	return out
}

type fakeAuditRepo struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func newFakeAuditRepo() *fakeAuditRepo {
	return &fakeAuditRepo{}
}

func (r *fakeAuditRepo) ByID(ctx context.Context, id uint) (*models.AuditLog, error) {
	return nil, nil
}

func (r *fakeAuditRepo) ByFilter(ctx context.Context, filter models.AuditLogFilter, orderBy string, limit, offset int) ([]*models.AuditLog, error) {
	return nil, nil
}

func (r *fakeAuditRepo) Save(ctx context.Context, entity *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *entity
	r.logs = append(r.logs, &stored)
	return nil
}

func (r *fakeAuditRepo) SaveBatch(ctx context.Context, entities []*models.AuditLog) error {
	for _, e := range entities {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeAuditRepo) Count(ctx context.Context, filter models.AuditLogFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.logs)), nil
}

func (r *fakeAuditRepo) Exists(ctx context.Context, filter models.AuditLogFilter) (bool, error) {
	n, _ := r.Count(ctx, filter)
	return n > 0, nil
}

func (r *fakeAuditRepo) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.AuditLog, error) {
	return nil, nil
}

func (r *fakeAuditRepo) ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error) {
	return nil, nil
}

func (r *fakeAuditRepo) ListFailedActions(ctx context.Context, limit, offset int) ([]*models.AuditLog, error) {
	return nil, nil
}

func (r *fakeAuditRepo) byAction(action string) []*models.AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AuditLog
	for _, l := range r.logs {
		if l.Action == action {
			copied := *l
			out = append(out, &copied)
		}
	}
	return out
}

type fakeApifyClient struct {
	mu sync.Mutex

	startRunID string
	startErr   error
	startCalls int

	status      services.RunStatus
	rawStatus   string
	statusErr   error
	statusCalls int
	// statusHook runs during RunStatus, before the result is returned, so
	// tests can interleave writes with an in-flight provider call
	statusHook func()

	results    []models.ScrapeResult
	resultsErr error
}

func (c *fakeApifyClient) StartRun(ctx context.Context, hashtag string, resultsLimit int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startCalls++
	if c.startErr != nil {
		return "", c.startErr
	}
	if c.startRunID == "" {
		return "run_test", nil
	}
	return c.startRunID, nil
}

func (c *fakeApifyClient) RunStatus(ctx context.Context, runID string) (services.RunStatus, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusCalls++
	if c.statusHook != nil {
		c.statusHook()
	}
	if c.statusErr != nil {
		return services.RunStatusFailed, "", c.statusErr
	}
	return c.status, c.rawStatus, nil
}

func (c *fakeApifyClient) RunResults(ctx context.Context, runID string) ([]models.ScrapeResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resultsErr != nil {
		return nil, c.resultsErr
	}
	return c.results, nil
}

func paginate[T any](items []*T, limit, offset int) []*T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
