package services

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"exampattern/internal/config"
	"exampattern/internal/models/db_models"
	"exampattern/internal/models/request_models"
	"exampattern/internal/models/response_models"
	"exampattern/internal/repositories"
	"exampattern/pkg/utils"
)

const (
	purchaseSource       = "credit_card_purchase"
	declineReason        = "Payment declined by bank"
	declineMessage       = "Payment declined. Please try again or use a different card."
	defaultPurchaseCount = 100
)

// Instrument is the card-like input presented for authorization.
type Instrument struct {
	Number   string
	ExpMonth int
	ExpYear  int
	CVC      string
}

type InstrumentCheck struct {
	Valid bool
	Brand string
	Last4 string
}

// RandomSource yields uniform values in [0,1).
type RandomSource interface {
	Float64() float64
}

type SettlementServiceInterface interface {
	ValidateInstrument(in Instrument) (*InstrumentCheck, error)
	Authorize(ctx context.Context, userID string, amount decimal.Decimal, tokens int64, in Instrument) (*response_models.TransactionResponse, error)
	Purchase(ctx context.Context, userID string, req request_models.PurchaseRequest) (*response_models.TransactionResponse, error)
	Refund(ctx context.Context, transactionID, userID string) (*response_models.TransactionResponse, error)
	TransactionHistory(ctx context.Context, userID string, limit int) ([]response_models.TransactionResponse, error)
	Statistics(ctx context.Context, userID string) (*response_models.PaymentStatisticsResponse, error)
	TestCards() []response_models.TestCardResponse
}

// SettlementOptions carries the simulator knobs. Zero-valued hooks fall back
// to real time and a process-local random source.
type SettlementOptions struct {
	SuccessRate float64
	DelayMin    time.Duration
	DelayMax    time.Duration

	Random RandomSource
	Sleep  func(ctx context.Context, d time.Duration) error
	Now    func() time.Time
}

func SettlementOptionsFromConfig(cfg config.PaymentConfig) SettlementOptions {
	return SettlementOptions{
		SuccessRate: cfg.SuccessRate,
		DelayMin:    cfg.DelayMin,
		DelayMax:    cfg.DelayMax,
	}
}

type SettlementService struct {
	ledger LedgerServiceInterface
	txns   repositories.TransactionRepository
	opts   SettlementOptions
}

func NewSettlementService(ledger LedgerServiceInterface, txns repositories.TransactionRepository, opts SettlementOptions) SettlementServiceInterface {
	if opts.Random == nil {
		opts.Random = newLockedRand(time.Now().UnixNano())
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SettlementService{ledger: ledger, txns: txns, opts: opts}
}

func (s *SettlementService) ValidateInstrument(in Instrument) (*InstrumentCheck, error) {
	number := utils.NormalizeCardNumber(in.Number)
	if !utils.IsDigits(number) || len(number) < 13 || len(number) > 19 {
		return nil, &utils.InstrumentError{Reason: "Invalid card number"}
	}
	if !utils.LuhnValid(number) {
		return nil, &utils.InstrumentError{Reason: "Invalid card number"}
	}

	if in.ExpMonth < 1 || in.ExpMonth > 12 {
		return nil, &utils.InstrumentError{Reason: "Invalid expiry month"}
	}
	now := s.opts.Now()
	year, month := now.Year(), int(now.Month())
	if in.ExpYear < year || (in.ExpYear == year && in.ExpMonth < month) {
		return nil, &utils.InstrumentError{Reason: "Card has expired"}
	}

	brand := utils.CardBrand(number)
	if !utils.IsDigits(in.CVC) || len(in.CVC) != utils.ExpectedCVCLength(brand) {
		return nil, &utils.InstrumentError{Reason: fmt.Sprintf("Invalid CVC length for %s", brand)}
	}

	return &InstrumentCheck{Valid: true, Brand: brand, Last4: utils.LastFour(number)}, nil
}

func (s *SettlementService) Authorize(ctx context.Context, userID string, amount decimal.Decimal, tokens int64, in Instrument) (*response_models.TransactionResponse, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if !amount.IsPositive() || tokens <= 0 {
		return nil, fmt.Errorf("%w: amount and tokens must be positive", utils.ErrInvalidAmount)
	}
	check, err := s.ValidateInstrument(in)
	if err != nil {
		return nil, err
	}

	txn := &db_models.PaymentTransaction{
		UserID:          userID,
		Amount:          amount.Round(2),
		Currency:        Currency,
		TokensPurchased: tokens,
		PaymentMethod:   db_models.PaymentMethodCreditCard,
		Status:          db_models.TxnStatusInitiated,
		CardLast4:       check.Last4,
		CardBrand:       check.Brand,
		CreatedAt:       s.opts.Now().UnixNano(),
	}
	if err := s.txns.Create(ctx, txn); err != nil {
		return nil, err
	}
	txnID := txn.ID.String()
	logger := log.WithFields(log.Fields{"user_id": userID, "transaction_id": txnID, "tokens": tokens})

	if err := s.opts.Sleep(ctx, s.processingDelay()); err != nil {
		s.fail(context.WithoutCancel(ctx), txnID, "Payment processing cancelled")
		return nil, err
	}

	// writes after the delay finish even if the caller has gone
	ctx = context.WithoutCancel(ctx)

	if s.opts.Random.Float64() >= s.opts.SuccessRate {
		s.fail(ctx, txnID, declineReason)
		logger.Info("payment declined")
		return nil, &utils.PaymentDeclinedError{TransactionID: txnID, Reason: declineMessage}
	}

	if _, err := s.ledger.Credit(ctx, userID, tokens, purchaseSource, "txn:"+txnID); err != nil {
		logger.WithError(err).Error("credit after approval failed")
		s.fail(ctx, txnID, "Token credit failed")
		return nil, err
	}

	completedAt := s.opts.Now().UnixNano()
	done, err := s.txns.Transition(ctx, txnID, db_models.TxnStatusInitiated, db_models.TxnStatusCompleted,
		repositories.TransitionFields{CompletedAt: &completedAt})
	if err != nil {
		logger.WithError(err).Error("tokens credited but transaction not marked completed, voiding credit")
		s.voidCredit(ctx, userID, txnID, tokens)
		s.fail(ctx, txnID, "Payment could not be completed")
		return nil, err
	}

	logger.WithField("amount", done.Amount.StringFixed(2)).Info("payment completed")
	resp := toTransactionResponse(done)
	return &resp, nil
}

func (s *SettlementService) fail(ctx context.Context, txnID, reason string) {
	if _, err := s.txns.Transition(ctx, txnID, db_models.TxnStatusInitiated, db_models.TxnStatusFailed,
		repositories.TransitionFields{FailureReason: &reason}); err != nil {
		log.WithError(err).WithField("transaction_id", txnID).Error("failed to record payment failure")
	}
}

// voidCredit takes back the tokens of an approval whose record could not be
// completed. Its key is derived from the transaction so a second attempt is
// a replay.
func (s *SettlementService) voidCredit(ctx context.Context, userID, txnID string, tokens int64) {
	adjust, err := s.ledger.ForceAdjust(ctx, userID, tokens,
		fmt.Sprintf("Void of transaction %s", txnID), "void:"+txnID)
	if err != nil {
		log.WithError(err).WithField("transaction_id", txnID).Error("failed to void credit, needs reconciliation")
		return
	}
	if adjust.Applied < tokens {
		log.WithFields(log.Fields{"transaction_id": txnID, "applied": adjust.Applied, "credited": tokens}).
			Error("void clamped to available balance, needs reconciliation")
	}
}

func (s *SettlementService) Purchase(ctx context.Context, userID string, req request_models.PurchaseRequest) (*response_models.TransactionResponse, error) {
	tokens := req.Tokens
	if tokens == 0 {
		tokens = defaultPurchaseCount
	}
	price, err := PriceFor(tokens)
	if err != nil {
		return nil, err
	}
	return s.Authorize(ctx, userID, price, tokens, Instrument{
		Number:   req.Card.Number,
		ExpMonth: req.Card.ExpiryMonth,
		ExpYear:  req.Card.ExpiryYear,
		CVC:      req.Card.CVC,
	})
}

// Refund reverses the ledger first under a key derived from the
// transaction, so retries and concurrent refunds apply it at most once.
func (s *SettlementService) Refund(ctx context.Context, transactionID, userID string) (*response_models.TransactionResponse, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	txn, err := s.txns.FindByIDForUser(ctx, transactionID, userID)
	if err != nil {
		return nil, err
	}
	if txn.Status != db_models.TxnStatusCompleted {
		return nil, fmt.Errorf("%w: transaction is %s", utils.ErrInvalidState, txn.Status)
	}

	adjust, err := s.ledger.ForceAdjust(ctx, userID, txn.TokensPurchased,
		fmt.Sprintf("Refund for transaction %s", transactionID), "refund:"+transactionID)
	if err != nil {
		return nil, err
	}

	refundedAt := s.opts.Now().UnixNano()
	refunded, err := s.txns.Transition(ctx, transactionID, db_models.TxnStatusCompleted, db_models.TxnStatusRefunded,
		repositories.TransitionFields{TokensReversed: &adjust.Applied, RefundedAt: &refundedAt})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":         userID,
		"transaction_id":  transactionID,
		"tokens_reversed": adjust.Applied,
	}).Info("transaction refunded")

	resp := toTransactionResponse(refunded)
	return &resp, nil
}

func (s *SettlementService) TransactionHistory(ctx context.Context, userID string, limit int) ([]response_models.TransactionResponse, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = repositories.DefaultHistoryLimit
	case limit > repositories.MaxHistoryLimit:
		limit = repositories.MaxHistoryLimit
	}
	txns, err := s.txns.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]response_models.TransactionResponse, 0, len(txns))
	for i := range txns {
		out = append(out, toTransactionResponse(&txns[i]))
	}
	return out, nil
}

func (s *SettlementService) Statistics(ctx context.Context, userID string) (*response_models.PaymentStatisticsResponse, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	txns, err := s.txns.ListByUser(ctx, userID, 0)
	if err != nil {
		return nil, err
	}

	counts := map[string]int{}
	amounts := map[string]decimal.Decimal{}
	for _, st := range []db_models.TransactionStatus{db_models.TxnStatusCompleted, db_models.TxnStatusFailed, db_models.TxnStatusRefunded} {
		counts[string(st)] = 0
		amounts[string(st)] = decimal.Zero
	}

	var tokens int64
	for _, t := range txns {
		key := string(t.Status)
		counts[key]++
		amounts[key] = amounts[key].Add(t.Amount)
		if t.Status == db_models.TxnStatusCompleted {
			tokens += t.TokensPurchased
		}
	}

	amountStrings := make(map[string]string, len(amounts))
	for k, v := range amounts {
		amountStrings[k] = v.StringFixed(2)
	}

	return &response_models.PaymentStatisticsResponse{
		TotalTransactions:    len(txns),
		CountByStatus:        counts,
		AmountByStatus:       amountStrings,
		TotalTokensPurchased: tokens,
		TotalSpent:           amounts[string(db_models.TxnStatusCompleted)].StringFixed(2),
		Currency:             Currency,
	}, nil
}

func (s *SettlementService) TestCards() []response_models.TestCardResponse {
	year := s.opts.Now().Year() + 1
	return []response_models.TestCardResponse{
		{Number: "4242424242424242", Brand: utils.BrandVisa, ExpiryMonth: 12, ExpiryYear: year, CVC: "123", Description: "Visa test card"},
		{Number: "5555555555554444", Brand: utils.BrandMastercard, ExpiryMonth: 12, ExpiryYear: year, CVC: "123", Description: "Mastercard test card"},
		{Number: "378282246310005", Brand: utils.BrandAmex, ExpiryMonth: 12, ExpiryYear: year, CVC: "1234", Description: "American Express test card"},
		{Number: "6011111111111117", Brand: utils.BrandDiscover, ExpiryMonth: 12, ExpiryYear: year, CVC: "123", Description: "Discover test card"},
	}
}

func (s *SettlementService) processingDelay() time.Duration {
	span := s.opts.DelayMax - s.opts.DelayMin
	if span <= 0 {
		return s.opts.DelayMin
	}
	return s.opts.DelayMin + time.Duration(s.opts.Random.Float64()*float64(span))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type lockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func newLockedRand(seed int64) *lockedRand {
	return &lockedRand{rnd: rand.New(rand.NewSource(seed))}
}

func (r *lockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Float64()
}

func toTransactionResponse(t *db_models.PaymentTransaction) response_models.TransactionResponse {
	resp := response_models.TransactionResponse{
		ID:              t.ID.String(),
		Amount:          t.Amount.StringFixed(2),
		Currency:        t.Currency,
		TokensPurchased: t.TokensPurchased,
		PaymentMethod:   t.PaymentMethod,
		Status:          string(t.Status),
		CardLast4:       t.CardLast4,
		CardBrand:       t.CardBrand,
		FailureReason:   t.FailureReason,
		TokensReversed:  t.TokensReversed,
		CreatedAt:       utils.FormatRFC3339(utils.FromUnixNano(t.CreatedAt)),
	}
	if at := utils.FromUnixNanoPtr(t.CompletedAt); at != nil {
		resp.CompletedAt = utils.FormatRFC3339(*at)
	}
	if at := utils.FromUnixNanoPtr(t.RefundedAt); at != nil {
		resp.RefundedAt = utils.FormatRFC3339(*at)
	}
	return resp
}
