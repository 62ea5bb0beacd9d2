package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cobranca/billing"
	"cobranca/db"
	"cobranca/models"
	"cobranca/tools"

	"github.com/jinzhu/gorm"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// recordingWaiter never sleeps. When cancelAfter > 0 it cancels the run on
// that wait and returns the context error.
type recordingWaiter struct {
	mu          sync.Mutex
	waits       []time.Duration
	cancelAfter int
	cancel      context.CancelFunc
}

func (w *recordingWaiter) Wait(ctx context.Context, d time.Duration) error {
	w.mu.Lock()
	w.waits = append(w.waits, d)
	n := len(w.waits)
	w.mu.Unlock()
	if w.cancelAfter > 0 && n >= w.cancelAfter && w.cancel != nil {
		w.cancel()
		return context.Canceled
	}
	return ctx.Err()
}

type fakeSender struct {
	mu    sync.Mutex
	fail  map[string]error
	sent  []string
	creds []models.WhatsAppConfig
}

func (s *fakeSender) SendText(_ context.Context, phone, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[phone]; err != nil {
		return err
	}
	s.sent = append(s.sent, phone+"|"+message)
	return nil
}

func (s *fakeSender) factory(cred models.WhatsAppConfig) Sender {
	s.mu.Lock()
	s.creds = append(s.creds, cred)
	s.mu.Unlock()
	return s
}

type fixture struct {
	gdb    *gorm.DB
	store  *db.BillingStore
	sender *fakeSender
	waiter *recordingWaiter
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb, err := gorm.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	gdb.DB().SetMaxOpenConns(1)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() { _ = gdb.Close() })

	sp, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	return &fixture{
		gdb:    gdb,
		store:  db.NewBillingStore(gdb),
		sender: &fakeSender{fail: map[string]error{}},
		waiter: &recordingWaiter{},
		now:    time.Date(2025, 6, 10, 9, 0, 0, 0, sp),
	}
}

func (f *fixture) engine(store Store) *Engine {
	if store == nil {
		store = f.store
	}
	return NewEngine(Options{
		Store:          store,
		Clock:          fixedClock{t: f.now},
		Waiter:         f.waiter,
		Jitter:         billing.NewJitter(7),
		NewSender:      f.sender.factory,
		DefaultBaseURL: "https://provider.test",
		Log:            zerolog.Nop(),
	})
}

func (f *fixture) rule(t *testing.T, r models.BillingRule) models.BillingRule {
	t.Helper()
	if r.OwnerID == 0 {
		r.OwnerID = 1
	}
	if r.Name == "" {
		r.Name = "vence hoje"
	}
	if r.MessageTemplate == "" {
		r.MessageTemplate = "Olá {nome}, seu plano {plano} vence em {vencimento}."
	}
	if r.DelayMin == 0 {
		r.DelayMin = 3
	}
	if r.DelayMax == 0 {
		r.DelayMax = 5
	}
	r.IsActive = true
	r.SendHour = 9
	require.NoError(t, f.gdb.Create(&r).Error)
	return r
}

// customer expiring daysFromToday days after the fixture's date.
func (f *fixture) customer(t *testing.T, name, phone string, daysFromToday int) models.Customer {
	t.Helper()
	exp := time.Date(2025, 6, 10+daysFromToday, 0, 0, 0, 0, time.UTC)
	c := models.Customer{OwnerID: 1, Name: name, Plan: "Premium", ExpirationDate: exp}
	if phone != "" {
		c.Phone = &phone
	}
	require.NoError(t, f.gdb.Create(&c).Error)
	return c
}

func (f *fixture) credential(t *testing.T) {
	t.Helper()
	require.NoError(t, f.gdb.Create(&models.WhatsAppConfig{OwnerID: 1, InstanceID: "inst-1", Token: "tok"}).Error)
}

func (f *fixture) runs(t *testing.T, ruleID int64) []models.RunLog {
	t.Helper()
	runs, err := f.store.RecentRuns(context.Background(), ruleID, 10)
	require.NoError(t, err)
	return runs
}

func (f *fixture) reload(t *testing.T, ruleID int64) *models.BillingRule {
	t.Helper()
	r, err := f.store.Rule(context.Background(), ruleID)
	require.NoError(t, err)
	require.NotNil(t, r)
	return r
}

func TestRunSendsOncePerDay(t *testing.T) {
	f := newFixture(t)
	rule := f.rule(t, models.BillingRule{StatusFilter: `["today"]`})
	f.customer(t, "Ana", "11999990001", 0)
	f.customer(t, "Bruno", "11999990002", 0)
	f.customer(t, "Caio", "11999990003", 5)
	f.credential(t)
	e := f.engine(nil)

	sum, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{RulesProcessed: 1, TotalSent: 2}, sum)
	assert.Equal(t, []string{
		"11999990001|Olá Ana, seu plano Premium vence em 10/06/2025.",
		"11999990002|Olá Bruno, seu plano Premium vence em 10/06/2025.",
	}, f.sender.sent)

	sum, err = e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{RulesSkipped: 1}, sum)
	assert.Len(t, f.sender.sent, 2)

	runs := f.runs(t, rule.ID)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RUN_STATUS_COMPLETED, runs[0].Status)
	assert.Equal(t, 2, runs[0].ClientsMatched)

	got := f.reload(t, rule.ID)
	assert.Equal(t, int64(2), got.TotalSent)
	assert.Equal(t, 2, got.LastRunCount)

	var logs int
	require.NoError(t, f.gdb.Model(&models.MessageLog{}).Where("rule_id = ?", rule.ID).Count(&logs).Error)
	assert.Equal(t, 2, logs)
}

func TestRunPartialFailureKeepsGoing(t *testing.T) {
	f := newFixture(t)
	rule := f.rule(t, models.BillingRule{StatusFilter: `["pre3"]`})
	var ids []int64
	for i, phone := range []string{"11999990001", "11999990002", "11999990003", "11999990004", "11999990005"} {
		c := f.customer(t, "Cliente", phone, 3)
		ids = append(ids, c.ID)
		if i == 1 || i == 3 {
			f.sender.fail[phone] = tools.ProviderError{StatusCode: 500, Body: "instance offline"}
		}
	}
	f.credential(t)
	require.NoError(t, f.gdb.Model(&models.BillingRule{}).Where("id = ?", rule.ID).Update("total_sent", 10).Error)

	sum, err := f.engine(nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sum.TotalSent)

	runs := f.runs(t, rule.ID)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RUN_STATUS_COMPLETED, runs[0].Status)
	assert.Equal(t, 5, runs[0].ClientsMatched)
	assert.Equal(t, 3, runs[0].MessagesSent)
	assert.Equal(t, 2, runs[0].MessagesFailed)
	require.Len(t, runs[0].Errors, 2)
	assert.Equal(t, ids[1], runs[0].Errors[0].CustomerID)
	assert.Equal(t, ids[3], runs[0].Errors[1].CustomerID)
	assert.Contains(t, runs[0].Errors[0].Message, "instance offline")

	got := f.reload(t, rule.ID)
	assert.Equal(t, int64(13), got.TotalSent)
	assert.Equal(t, 3, got.LastRunCount)
}

func TestRunEveryFailureIsError(t *testing.T) {
	f := newFixture(t)
	rule := f.rule(t, models.BillingRule{})
	f.customer(t, "Ana", "11999990001", 0)
	f.sender.fail["11999990001"] = errors.New("connection refused")
	f.credential(t)

	sum, err := f.engine(nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{RulesProcessed: 1}, sum)

	runs := f.runs(t, rule.ID)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RUN_STATUS_ERROR, runs[0].Status)
	assert.Equal(t, 1, runs[0].MessagesFailed)
}

func TestRunNoMatches(t *testing.T) {
	f := newFixture(t)
	rule := f.rule(t, models.BillingRule{StatusFilter: `["expired"]`})
	f.customer(t, "Ana", "11999990001", 10)
	f.customer(t, "Sem telefone", "", -10)
	require.NoError(t, f.gdb.Model(&models.BillingRule{}).Where("id = ?", rule.ID).Update("last_run_count", 4).Error)

	sum, err := f.engine(nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{RulesProcessed: 1}, sum)
	assert.Empty(t, f.sender.sent)

	runs := f.runs(t, rule.ID)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RUN_STATUS_NO_MATCHES, runs[0].Status)
	assert.Equal(t, 0, runs[0].ClientsMatched)

	got := f.reload(t, rule.ID)
	require.NotNil(t, got.LastRunAt)
	assert.Equal(t, 4, got.LastRunCount)
}

func TestRunMissingCredential(t *testing.T) {
	f := newFixture(t)
	rule := f.rule(t, models.BillingRule{})
	f.customer(t, "Ana", "11999990001", 0)

	sum, err := f.engine(nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{RulesProcessed: 1}, sum)
	assert.Empty(t, f.sender.sent)

	runs := f.runs(t, rule.ID)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RUN_STATUS_ERROR, runs[0].Status)
	assert.Equal(t, 1, runs[0].ClientsMatched)
	require.Len(t, runs[0].Errors, 1)
	assert.Equal(t, ErrMissingCredential.Error(), runs[0].Errors[0].Message)
}

func TestRunWaitsBetweenSends(t *testing.T) {
	f := newFixture(t)
	f.rule(t, models.BillingRule{DelayMin: 4, DelayMax: 9})
	for _, phone := range []string{"11999990001", "11999990002", "11999990003", "11999990004"} {
		f.customer(t, "Cliente", phone, 0)
	}
	f.credential(t)

	_, err := f.engine(nil).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, f.waiter.waits, 3)
	for _, d := range f.waiter.waits {
		assert.GreaterOrEqual(t, d, 4*time.Second)
		assert.LessOrEqual(t, d, 9*time.Second)
	}
	require.Len(t, f.sender.creds, 1)
	assert.Equal(t, "https://provider.test", f.sender.creds[0].BaseURL)
}

func TestRunInvalidRuleIsLoggedNotSent(t *testing.T) {
	f := newFixture(t)
	rule := f.rule(t, models.BillingRule{DelayMin: 1, DelayMax: 2})
	f.customer(t, "Ana", "11999990001", 0)
	f.credential(t)

	sum, err := f.engine(nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{RulesProcessed: 1}, sum)
	assert.Empty(t, f.sender.sent)

	runs := f.runs(t, rule.ID)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RUN_STATUS_ERROR, runs[0].Status)
	require.Len(t, runs[0].Errors, 1)
	assert.Contains(t, runs[0].Errors[0].Message, "delay min")
}

func TestRunIgnoresRulesNotDue(t *testing.T) {
	f := newFixture(t)
	rule := f.rule(t, models.BillingRule{})
	require.NoError(t, f.gdb.Model(&models.BillingRule{}).Where("id = ?", rule.ID).Update("send_minute", 1).Error)
	f.customer(t, "Ana", "11999990001", 0)
	f.credential(t)

	sum, err := f.engine(nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{}, sum)
	assert.Empty(t, f.runs(t, rule.ID))
}

func TestRunInterruptedKeepsProgress(t *testing.T) {
	f := newFixture(t)
	rule := f.rule(t, models.BillingRule{})
	for _, phone := range []string{"11999990001", "11999990002", "11999990003"} {
		f.customer(t, "Cliente", phone, 0)
	}
	f.credential(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.waiter.cancelAfter = 1
	f.waiter.cancel = cancel

	sum, err := f.engine(nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.TotalSent)

	runs := f.runs(t, rule.ID)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RUN_STATUS_COMPLETED, runs[0].Status)
	assert.Equal(t, 3, runs[0].ClientsMatched)
	assert.Equal(t, 1, runs[0].MessagesSent)
	require.Len(t, runs[0].Errors, 1)
	assert.Contains(t, runs[0].Errors[0].Message, "interrupted")
}

func TestRunRejectsOverlap(t *testing.T) {
	f := newFixture(t)
	e := f.engine(nil)
	e.mu.Lock()
	defer e.mu.Unlock()

	_, err := e.Run(context.Background())
	require.ErrorIs(t, err, ErrInvocationInProgress)
}

type brokenCustomers struct {
	*db.BillingStore
}

func (brokenCustomers) Customers(context.Context, int64) ([]models.Customer, error) {
	return nil, errors.New("db gone")
}

func TestRunStoreFailureReleasesClaim(t *testing.T) {
	f := newFixture(t)
	rule := f.rule(t, models.BillingRule{})
	f.customer(t, "Ana", "11999990001", 0)
	f.credential(t)

	_, err := f.engine(brokenCustomers{f.store}).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db gone")
	assert.Empty(t, f.runs(t, rule.ID))

	sum, err := f.engine(nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{RulesProcessed: 1, TotalSent: 1}, sum)
}

func TestPreview(t *testing.T) {
	f := newFixture(t)
	rule := f.rule(t, models.BillingRule{PeriodValue: 2, PeriodDirection: "after"})
	f.customer(t, "Hoje", "11999990001", 0)
	f.customer(t, "Ontem", "11999990002", -1)
	f.customer(t, "Semana passada", "11999990003", -7)
	f.customer(t, "Amanha", "11999990004", 1)
	e := f.engine(nil)

	cands, err := e.Preview(context.Background(), rule.ID)
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.Equal(t, billing.StatusToday, cands[0].Status)
	assert.Equal(t, billing.StatusPost1, cands[1].Status)
	assert.Empty(t, f.sender.sent)

	_, err = e.Preview(context.Background(), 404)
	require.ErrorIs(t, err, ErrRuleNotFound)
}

func TestNewEngineDefaultsToReferenceTimezone(t *testing.T) {
	f := newFixture(t)
	e := NewEngine(Options{Store: f.store, Log: zerolog.Nop()})

	clock, ok := e.clock.(billing.ZoneClock)
	require.True(t, ok)
	require.NotNil(t, clock.Location)
	assert.Equal(t, billing.DefaultTimezone, clock.Location.String())
}

type brokenRule struct {
	*db.BillingStore
}

func (brokenRule) Rule(context.Context, int64) (*models.BillingRule, error) {
	return nil, errors.New("database is locked")
}

func TestPreviewSeparatesInvalidRuleFromStoreFailure(t *testing.T) {
	f := newFixture(t)
	rule := f.rule(t, models.BillingRule{DelayMin: 1, DelayMax: 2})

	_, err := f.engine(nil).Preview(context.Background(), rule.ID)
	require.ErrorIs(t, err, ErrInvalidRule)
	assert.Contains(t, err.Error(), "delay min")

	_, err = f.engine(brokenRule{f.store}).Preview(context.Background(), rule.ID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidRule)
	assert.NotErrorIs(t, err, ErrRuleNotFound)
}
