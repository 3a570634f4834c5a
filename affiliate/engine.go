package affiliate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/HSouheill/vpn_reseller_backend/models"
)

// Outcome is what happened to one payout step of the waterfall
type Outcome string

const (
	OutcomePaid         Outcome = "paid"
	OutcomeBelowUnit    Outcome = "below_credit_unit"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomePayoutFailed Outcome = "payout_failed"
	OutcomeLedgerFailed Outcome = "ledger_failed"
)

// LevelResult records one payout step
type LevelResult struct {
	Level         int
	BeneficiaryID string
	Currency      models.Currency
	Amount        float64
	Outcome       Outcome
	Err           error
}

// Report summarizes the waterfall for one sale
type Report struct {
	SaleID string
	Levels []LevelResult
	// Halted is set when the ancestor walk stopped on an error rather than
	// on the end of the chain or the level limit.
	Halted error
	// Retryable marks halts caused by unavailable stores; redelivering the
	// sale is safe because paid steps are skipped by the ledger check.
	Retryable bool
}

// Paid returns the steps that were paid and logged
func (r Report) Paid() []LevelResult {
	var paid []LevelResult
	for _, lvl := range r.Levels {
		if lvl.Outcome == OutcomePaid {
			paid = append(paid, lvl)
		}
	}
	return paid
}

// Engine distributes commissions for completed sales up the sponsor chain.
type Engine struct {
	relationships RelationshipStore
	config        ConfigStore
	ledger        Ledger
	payouts       PayoutMutator
	pricing       PricingOracle
	notifier      NotificationSink
	locker        Locker
	metrics       *Metrics

	payoutTimeout time.Duration
	notifyTimeout time.Duration
	now           func() time.Time
	newID         func() string

	notifications sync.WaitGroup
}

func NewEngine(deps Dependencies) *Engine {
	deps = deps.withDefaults()
	return &Engine{
		relationships: deps.Relationships,
		config:        deps.Config,
		ledger:        deps.Ledger,
		payouts:       deps.Payouts,
		pricing:       deps.Pricing,
		notifier:      deps.Notifier,
		locker:        deps.Locker,
		metrics:       deps.Metrics,
		payoutTimeout: deps.PayoutTimeout,
		notifyTimeout: deps.NotifyTimeout,
		now:           deps.Now,
		newID:         deps.NewID,
	}
}

type payoutPart struct {
	amount   float64
	currency models.Currency
	err      error
}

// ProcessCommissionsForSale walks from the seller up to config.Levels
// ancestors, paying each its configured percentage. Level N is fully decided
// before level N+1 starts. Failures are absorbed: one beneficiary's failure
// never blocks the others and is never surfaced to the sale.
func (e *Engine) ProcessCommissionsForSale(ctx context.Context, sale models.SaleCompleted) Report {
	started := time.Now()
	defer func() { e.metrics.observeSale(time.Since(started)) }()

	report := Report{SaleID: sale.ID}
	sale.ResellerID = strings.TrimSpace(sale.ResellerID)
	if !strings.EqualFold(strings.TrimSpace(sale.Status), models.SaleStatusCompleted) || sale.Amount <= 0 || sale.ResellerID == "" {
		log.Printf("Affiliate: ignoring sale %s (status=%s amount=%.2f)", sale.ID, sale.Status, sale.Amount)
		return report
	}

	cfg, err := e.config.GetAffiliateConfig(ctx)
	if err != nil {
		log.Printf("Affiliate: failed to load config for sale %s: %v", sale.ID, err)
		report.Halted = fmt.Errorf("load affiliate config: %w", err)
		report.Retryable = true
		return report
	}
	if !cfg.Enabled {
		return report
	}

	// Redeliveries of one sale are serialized so the ledger check cannot race.
	unlock, err := e.locker.Lock(ctx, "affiliate:sale:"+sale.ID)
	if err != nil {
		e.halt(&report, fmt.Errorf("lock sale %s: %w", sale.ID, err))
		return report
	}
	defer unlock()

	current := sale.ResellerID
	walked := map[string]struct{}{current: {}}
	for level := 1; level <= cfg.Levels; level++ {
		parent, err := e.sponsorOf(ctx, current)
		if err != nil {
			e.halt(&report, err)
			break
		}
		if parent == "" {
			break
		}
		if _, loop := walked[parent]; loop {
			e.halt(&report, &DataIntegrityViolation{NodeID: parent, Reason: "sponsor chain loops back"})
			break
		}
		walked[parent] = struct{}{}

		if pct := cfg.PercentageForLevel(level); pct > 0 {
			gross := sale.Amount * pct / 100
			for _, part := range e.convert(ctx, gross, cfg.CommissionType) {
				report.Levels = append(report.Levels, e.payLevel(ctx, sale, parent, level, part))
			}
		}
		current = parent
	}
	return report
}

// HandleSale adapts the engine to the sales bus. Only store outages are
// reported, so the bus can redeliver; commission failures stay absorbed.
func (e *Engine) HandleSale(ctx context.Context, sale models.SaleCompleted) error {
	report := e.ProcessCommissionsForSale(ctx, sale)
	if report.Retryable {
		return report.Halted
	}
	return nil
}

// Wait blocks until every in-flight notification has returned.
func (e *Engine) Wait() {
	e.notifications.Wait()
}

func (e *Engine) sponsorOf(ctx context.Context, childID string) (string, error) {
	edges, err := e.relationships.FindActiveByChild(ctx, childID)
	if err != nil {
		return "", fmt.Errorf("find sponsor of %s: %w", childID, err)
	}
	switch len(edges) {
	case 0:
		return "", nil
	case 1:
		return edges[0].ParentID, nil
	default:
		return "", &DataIntegrityViolation{NodeID: childID, Reason: fmt.Sprintf("%d active sponsors", len(edges))}
	}
}

func (e *Engine) halt(report *Report, err error) {
	var integrity *DataIntegrityViolation
	if errors.As(err, &integrity) {
		e.metrics.incIntegrity()
	} else {
		report.Retryable = true
	}
	log.Printf("Affiliate: commission walk for sale %s halted: %v", report.SaleID, err)
	report.Halted = err
}

func (e *Engine) convert(ctx context.Context, gross float64, kind models.CommissionType) []payoutPart {
	switch kind {
	case models.CommissionTypeBalance:
		return []payoutPart{{amount: gross, currency: models.CurrencyBalance}}
	case models.CommissionTypeCredits:
		return []payoutPart{e.toCredits(ctx, gross)}
	case models.CommissionTypeBoth:
		return []payoutPart{e.toCredits(ctx, gross), {amount: gross, currency: models.CurrencyBalance}}
	default:
		return []payoutPart{{currency: models.Currency(kind), err: fmt.Errorf("unknown commission type %q", kind)}}
	}
}

func (e *Engine) toCredits(ctx context.Context, gross float64) payoutPart {
	part := payoutPart{currency: models.CurrencyCredits}
	if e.pricing == nil {
		part.err = errors.New("no pricing oracle configured")
		return part
	}
	price, err := e.pricing.CurrentCreditUnitPrice(ctx)
	if err != nil {
		part.err = fmt.Errorf("credit unit price: %w", err)
		return part
	}
	if price <= 0 {
		part.err = fmt.Errorf("invalid credit unit price %.4f", price)
		return part
	}
	part.amount = math.Floor(gross / price)
	return part
}

func (e *Engine) payLevel(ctx context.Context, sale models.SaleCompleted, beneficiary string, level int, part payoutPart) LevelResult {
	res := LevelResult{Level: level, BeneficiaryID: beneficiary, Currency: part.currency, Amount: part.amount}
	fail := func(stage string, outcome Outcome, err error) LevelResult {
		res.Outcome = outcome
		res.Err = &PayoutFailure{Stage: stage, BeneficiaryID: beneficiary, Level: level, Currency: part.currency, Err: err}
		e.metrics.incPayoutFailure(stage)
		e.metrics.incOutcome(outcome, string(part.currency))
		log.Printf("Affiliate: sale %s: %v", sale.ID, res.Err)
		return res
	}

	if part.err != nil {
		return fail("convert", OutcomePayoutFailed, part.err)
	}
	// Open question kept as-is: a zero-credit step leaves no ledger trace.
	if part.amount <= 0 {
		res.Outcome = OutcomeBelowUnit
		e.metrics.incOutcome(OutcomeBelowUnit, string(part.currency))
		return res
	}

	key := LedgerKey{TransactionID: sale.ID, BeneficiaryID: beneficiary, Level: level, Currency: part.currency}
	exists, err := e.ledger.Exists(ctx, key)
	if err != nil {
		return fail("ledger_check", OutcomeLedgerFailed, err)
	}
	if exists {
		res.Outcome = OutcomeDuplicate
		e.metrics.incOutcome(OutcomeDuplicate, string(part.currency))
		return res
	}

	if err := e.pay(ctx, beneficiary, part); err != nil {
		return fail("mutate", OutcomePayoutFailed, err)
	}

	entry := models.CommissionLog{
		ID:            e.newID(),
		TransactionID: sale.ID,
		BeneficiaryID: beneficiary,
		SourceUserID:  sale.ResellerID,
		Level:         level,
		Amount:        part.amount,
		Currency:      part.currency,
		CreatedAt:     e.now(),
	}
	if err := e.ledger.Append(ctx, entry); err != nil {
		// The wallet was already credited; a retry after this point can double-pay.
		return fail("ledger_append", OutcomeLedgerFailed, err)
	}

	res.Outcome = OutcomePaid
	e.metrics.incOutcome(OutcomePaid, string(part.currency))
	e.notify(beneficiary, level, part)
	return res
}

// pay runs the mutation under the payout timeout. The mutator owns the
// deadline: a call that returns nil was applied, even if it finished late, so
// the step is always logged once the wallet changed.
func (e *Engine) pay(ctx context.Context, beneficiary string, part payoutPart) error {
	ctx, cancel := context.WithTimeout(ctx, e.payoutTimeout)
	defer cancel()

	if part.currency == models.CurrencyCredits {
		return e.payouts.AddCredits(ctx, beneficiary, int64(part.amount))
	}
	return e.payouts.AddBalance(ctx, beneficiary, part.amount)
}

func (e *Engine) notify(beneficiary string, level int, part payoutPart) {
	if e.notifier == nil {
		return
	}
	message := commissionMessage(level, part)

	e.notifications.Add(1)
	go func() {
		defer e.notifications.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("Affiliate: notification to %s panicked: %v", beneficiary, r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), e.notifyTimeout)
		defer cancel()
		if err := e.notifier.Notify(ctx, beneficiary, message); err != nil {
			log.Printf("Affiliate: failed to notify %s: %v", beneficiary, err)
		}
	}()
}

func commissionMessage(level int, part payoutPart) string {
	if part.currency == models.CurrencyCredits {
		return fmt.Sprintf("You earned %d credits (level %d commission) from a sale in your network", int64(part.amount), level)
	}
	return fmt.Sprintf("You earned %.2f (level %d commission) from a sale in your network", part.amount, level)
}
