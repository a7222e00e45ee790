package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"portfolio-ledger/database"
	"portfolio-ledger/events"
	"portfolio-ledger/models"
	"portfolio-ledger/pricefeed"
	"portfolio-ledger/valuation"
)

// TradeRequest asks to buy or sell Quantity shares of Symbol at the current
// market price. Name is optional.
type TradeRequest struct {
	UserID   uint   `json:"-" validate:"required"`
	Symbol   string `json:"symbol" validate:"required,min=1,max=10,symbol"`
	Name     string `json:"name" validate:"max=255"`
	Quantity int64  `json:"quantity" validate:"required,min=1"`
}

// Receipt is the outcome of a trade: the appended transaction and the
// holding after it, nil once the position is closed.
type Receipt struct {
	Transaction models.Transaction `json:"transaction"`
	Holding     *models.Holding    `json:"holding"`
}

// Service appends trades to the ledger and keeps holdings current.
type Service struct {
	store     *database.Store
	prices    pricefeed.Gateway
	projector *Projector
	events    events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewService wires a ledger service. A nil publisher drops events and a nil
// logger logs nothing.
func NewService(store *database.Store, prices pricefeed.Gateway, publisher events.Publisher, logger *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		prices:    prices,
		projector: NewProjector(store, prices),
		events:    publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Projector returns the projector used after each trade.
func (s *Service) Projector() *Projector { return s.projector }

func (s *Service) Purchase(ctx context.Context, req TradeRequest) (Receipt, error) {
	return s.trade(ctx, models.Buy, req)
}

// Sale fails with models.ErrInsufficientPosition when the user holds fewer
// shares than requested.
func (s *Service) Sale(ctx context.Context, req TradeRequest) (Receipt, error) {
	return s.trade(ctx, models.Sell, req)
}

func (s *Service) trade(ctx context.Context, typ models.TransactionType, req TradeRequest) (Receipt, error) {
	req.Symbol = models.NormalizeSymbol(req.Symbol)
	req.Name = strings.TrimSpace(req.Name)
	if err := models.Validate(req); err != nil {
		return Receipt{}, models.WithSymbol(req.UserID, req.Symbol, err)
	}

	price, err := s.prices.CurrentPrice(ctx, req.Symbol)
	if err != nil {
		return Receipt{}, models.WithSymbol(req.UserID, req.Symbol, err)
	}

	var receipt Receipt
	err = s.store.InTx(ctx, func(tx *database.Store) error {
		// the oversell check and the insert must see the same position
		if err := tx.LockPair(ctx, req.UserID, req.Symbol); err != nil {
			return err
		}
		name := req.Name
		if typ == models.Sell {
			pos, err := tx.Position(ctx, req.UserID, req.Symbol)
			if err != nil {
				return err
			}
			if held := pos.NetQuantity(); held < req.Quantity {
				return models.Errorf(req.UserID, req.Symbol, models.ErrInsufficientPosition, "holding %d, selling %d", max(held, 0), req.Quantity)
			}
			if name == "" {
				name = pos.Name
			}
		}

		t := models.NewTransaction(req.UserID, req.Symbol, name, typ, price, req.Quantity, s.now())
		if err := tx.CreateTransaction(ctx, &t); err != nil {
			return err
		}
		h, err := s.projector.project(ctx, tx, req.UserID, req.Symbol, name, price)
		if err != nil {
			return err
		}
		receipt = Receipt{Transaction: t, Holding: h}
		return nil
	})
	if err != nil {
		return Receipt{}, models.WithSymbol(req.UserID, req.Symbol, err)
	}

	var net int64
	if receipt.Holding != nil {
		net = receipt.Holding.Quantity
	}
	if err := s.events.Publish(ctx, events.NewTransactionEvent(receipt.Transaction, net)); err != nil {
		s.logger.Warn("publish ledger event",
			zap.Uint("user_id", req.UserID),
			zap.String("symbol", req.Symbol),
			zap.Error(err))
	}
	s.logger.Info("trade recorded",
		zap.Uint("user_id", req.UserID),
		zap.String("symbol", req.Symbol),
		zap.String("type", string(typ)),
		zap.Int64("quantity", req.Quantity),
		zap.String("price", receipt.Transaction.Price.String()))
	return receipt, nil
}

// Holdings lists the user's open positions.
func (s *Service) Holdings(ctx context.Context, userID uint) ([]models.Holding, error) {
	return s.store.Holdings(ctx, userID)
}

// RecordBatch loads already priced transactions, such as imported or
// simulated history, and recomputes every pair they touch. txs must be in
// timestamp order. The ledger is written even when some holdings cannot be
// priced; those failures are returned joined.
func (s *Service) RecordBatch(ctx context.Context, txs []models.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	if err := valuation.Validate(txs); err != nil {
		return err
	}
	if err := s.store.CreateInBatches(ctx, txs, 100); err != nil {
		return fmt.Errorf("record batch: %w", err)
	}

	type pair struct {
		userID uint
		symbol string
	}
	seen := map[pair]bool{}
	var errs []error
	for _, t := range txs {
		p := pair{t.UserID, t.Symbol}
		if seen[p] {
			continue
		}
		seen[p] = true
		if err := s.projector.Recalc(ctx, t.UserID, t.Symbol, t.Name); err != nil {
			s.logger.Warn("recalc holding",
				zap.Uint("user_id", t.UserID),
				zap.String("symbol", t.Symbol),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
