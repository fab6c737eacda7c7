package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian/internal/audit"
	"github.com/meridian-erp/meridian/internal/shared"
)

// MetricsPort records costing counters.
type MetricsPort interface {
	LotConsumed()
}

// Service owns stock lots and movements and is the only writer of lot
// quantities. Outbound cost comes from FIFO lot consumption.
type Service struct {
	repo    Repository
	auditor *audit.Interceptor
	metrics MetricsPort
	now     func() time.Time
}

// NewService builds Service.
func NewService(repo Repository, auditor *audit.Interceptor, metrics MetricsPort) *Service {
	return &Service{repo: repo, auditor: auditor, metrics: metrics, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Receive creates a new lot for the receipt. Lots are always additive:
// matching unit costs never merge, preserving receipt-date ordering.
func (s *Service) Receive(ctx context.Context, input ReceiveInput) (StockLot, StockMovement, error) {
	if input.ItemID == 0 {
		return StockLot{}, StockMovement{}, errors.New("inventory: item required")
	}
	if input.Quantity.Sign() <= 0 {
		return StockLot{}, StockMovement{}, ErrInvalidQuantity
	}
	if input.UnitCost.Sign() < 0 {
		return StockLot{}, StockMovement{}, ErrInvalidUnitCost
	}
	movementType := input.Type
	if movementType == "" {
		movementType = MovementTypeStockIn
	}
	if movementType != MovementTypeStockIn && movementType != MovementTypeOpening && movementType != MovementTypeAdjust && movementType != MovementTypeTransfer {
		return StockLot{}, StockMovement{}, fmt.Errorf("inventory: %s is not an inbound movement type", movementType)
	}
	receivedDate := input.ReceivedDate
	if receivedDate.IsZero() {
		receivedDate = s.now().UTC()
	}
	totalCost := shared.Round2(input.Quantity.Mul(input.UnitCost))
	var lot StockLot
	var movement StockMovement
	err := s.auditor.Create(ctx, "stock_lot", func(ctx context.Context) (string, any, error) {
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			inserted, err := tx.InsertLot(ctx, StockLot{
				ItemID:       input.ItemID,
				ReceivedDate: receivedDate,
				ReceivedQty:  input.Quantity,
				AvailableQty: input.Quantity,
				UnitCost:     input.UnitCost,
				TotalCost:    totalCost,
			})
			if err != nil {
				return err
			}
			lot = inserted
			move, err := tx.InsertMovement(ctx, StockMovement{
				ItemID:       input.ItemID,
				LotID:        &inserted.ID,
				Type:         movementType,
				Quantity:     input.Quantity,
				UnitCost:     input.UnitCost,
				TotalCost:    totalCost,
				MovementDate: receivedDate,
				Reference:    input.Reference,
				CreatedBy:    input.ActorID,
			})
			if err != nil {
				return err
			}
			movement = move
			return nil
		})
		if err != nil {
			return "", nil, err
		}
		return strconv.FormatInt(lot.ID, 10), lot, nil
	})
	if err != nil {
		return StockLot{}, StockMovement{}, err
	}
	return lot, movement, nil
}

// Consume draws the requested quantity from the oldest eligible lots.
// Either the full request is satisfied or nothing changes: availability is
// checked across all eligible lots before any decrement.
func (s *Service) Consume(ctx context.Context, input ConsumeInput) (ConsumeResult, error) {
	if input.ItemID == 0 {
		return ConsumeResult{}, errors.New("inventory: item required")
	}
	if input.Quantity.Sign() <= 0 {
		return ConsumeResult{}, ErrInvalidQuantity
	}
	movementType := input.Type
	if movementType == "" {
		movementType = MovementTypeStockOut
	}
	if movementType != MovementTypeStockOut && movementType != MovementTypeSale && movementType != MovementTypeAdjust && movementType != MovementTypeTransfer {
		return ConsumeResult{}, fmt.Errorf("inventory: %s is not an outbound movement type", movementType)
	}
	asOf := input.AsOfDate
	if asOf.IsZero() {
		asOf = s.now().UTC()
	}
	var result ConsumeResult
	err := s.auditor.Create(ctx, "stock_movement", func(ctx context.Context) (string, any, error) {
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			lots, err := tx.GetLotsForUpdate(ctx, input.ItemID, asOf)
			if err != nil {
				return err
			}
			var available decimal.Decimal
			for _, lot := range lots {
				available = available.Add(lot.AvailableQty)
			}
			if available.Cmp(input.Quantity) < 0 {
				return fmt.Errorf("%w: requested %s, available %s", ErrInsufficientStock, input.Quantity, available)
			}
			remaining := input.Quantity
			var slices []ConsumedSlice
			var totalCost decimal.Decimal
			for _, lot := range lots {
				if remaining.Sign() == 0 {
					break
				}
				take := decimal.Min(lot.AvailableQty, remaining)
				if err := tx.UpdateLotAvailable(ctx, lot.ID, lot.AvailableQty.Sub(take)); err != nil {
					return err
				}
				cost := shared.Round2(take.Mul(lot.UnitCost))
				slices = append(slices, ConsumedSlice{LotID: lot.ID, Qty: take, UnitCost: lot.UnitCost, Cost: cost})
				totalCost = totalCost.Add(cost)
				remaining = remaining.Sub(take)
			}
			unitCost := totalCost.DivRound(input.Quantity, 4)
			movement, err := tx.InsertMovement(ctx, StockMovement{
				ItemID:       input.ItemID,
				Type:         movementType,
				Quantity:     input.Quantity.Neg(),
				UnitCost:     unitCost,
				TotalCost:    totalCost,
				MovementDate: asOf,
				Reference:    input.Reference,
				CreatedBy:    input.ActorID,
			})
			if err != nil {
				return err
			}
			consumptions := make([]LotConsumption, 0, len(slices))
			for _, slice := range slices {
				consumptions = append(consumptions, LotConsumption{
					MovementID: movement.ID,
					LotID:      slice.LotID,
					Qty:        slice.Qty,
					UnitCost:   slice.UnitCost,
				})
			}
			if err := tx.InsertConsumptions(ctx, movement.ID, consumptions); err != nil {
				return err
			}
			movement.Consumptions = consumptions
			result = ConsumeResult{Movement: movement, Slices: slices, TotalCost: totalCost}
			return nil
		})
		if err != nil {
			return "", nil, err
		}
		return strconv.FormatInt(result.Movement.ID, 10), result.Movement, nil
	})
	if err != nil {
		return ConsumeResult{}, err
	}
	if s.metrics != nil {
		s.metrics.LotConsumed()
	}
	return result, nil
}

// Reverse restores the exact quantities a movement drew, lot by lot, using
// the retained consumption breakdown. Only full reversal is supported.
func (s *Service) Reverse(ctx context.Context, movementID int64, actorID int64) (StockMovement, error) {
	if movementID == 0 {
		return StockMovement{}, errors.New("inventory: movement id required")
	}
	var reversal StockMovement
	err := s.auditor.Update(ctx, "stock_movement", strconv.FormatInt(movementID, 10),
		func(ctx context.Context) (any, error) {
			return s.repo.GetMovement(ctx, movementID)
		},
		func(ctx context.Context) (any, error) {
			err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
				movement, err := tx.GetMovementForUpdate(ctx, movementID)
				if err != nil {
					return err
				}
				if movement.ReversedByID != nil {
					return ErrAlreadyReversed
				}
				if len(movement.Consumptions) == 0 {
					return ErrNotReversible
				}
				for _, c := range movement.Consumptions {
					lot, err := tx.GetLotForUpdate(ctx, c.LotID)
					if err != nil {
						return err
					}
					restored := lot.AvailableQty.Add(c.Qty)
					if restored.Add(lot.ReservedQty).Cmp(lot.ReceivedQty) > 0 {
						return fmt.Errorf("%w: lot %d", ErrLotOverfill, lot.ID)
					}
					if err := tx.UpdateLotAvailable(ctx, lot.ID, restored); err != nil {
						return err
					}
				}
				inserted, err := tx.InsertMovement(ctx, StockMovement{
					ItemID:       movement.ItemID,
					Type:         MovementTypeAdjust,
					Quantity:     movement.Quantity.Neg(),
					UnitCost:     movement.UnitCost,
					TotalCost:    movement.TotalCost,
					MovementDate: s.now().UTC(),
					Reference:    fmt.Sprintf("REV-%d", movement.ID),
					CreatedBy:    actorID,
				})
				if err != nil {
					return err
				}
				if err := tx.SetMovementReversedBy(ctx, movement.ID, inserted.ID); err != nil {
					return err
				}
				reversal = inserted
				return nil
			})
			if err != nil {
				return nil, err
			}
			return reversal, nil
		})
	if err != nil {
		return StockMovement{}, err
	}
	return reversal, nil
}

// LinkJournal stamps a movement with the journal entry that posted it.
func (s *Service) LinkJournal(ctx context.Context, movementID, entryID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.SetMovementJournal(ctx, movementID, entryID)
	})
}

// GetMovement returns one movement with its consumption breakdown.
func (s *Service) GetMovement(ctx context.Context, movementID int64) (StockMovement, error) {
	return s.repo.GetMovement(ctx, movementID)
}

// LotValuation values open lots at their own unit cost.
type LotValuation struct {
	Lots  []StockLot
	Qty   decimal.Decimal
	Value decimal.Decimal
}

// Valuation reports remaining quantity and value for an item's open lots.
func (s *Service) Valuation(ctx context.Context, itemID int64) (LotValuation, error) {
	lots, err := s.repo.ListOpenLots(ctx, itemID)
	if err != nil {
		return LotValuation{}, err
	}
	var v LotValuation
	v.Lots = lots
	for _, lot := range lots {
		v.Qty = v.Qty.Add(lot.AvailableQty)
		v.Value = v.Value.Add(shared.Round2(lot.AvailableQty.Mul(lot.UnitCost)))
	}
	return v, nil
}

// BackfillOpeningLot is the one-time migration path for legacy OPENING
// movements recorded without a lot. The legacy movement is stamped with
// the created lot in the same transaction, so a second run on the same
// movement is rejected instead of doubling on-hand stock. Steady-state
// consumption never synthesizes lots.
func (s *Service) BackfillOpeningLot(ctx context.Context, movementID int64) (StockLot, error) {
	if movementID == 0 {
		return StockLot{}, errors.New("inventory: movement id required")
	}
	var lot StockLot
	err := s.auditor.Update(ctx, "stock_movement", strconv.FormatInt(movementID, 10),
		func(ctx context.Context) (any, error) {
			return s.repo.GetMovement(ctx, movementID)
		},
		func(ctx context.Context) (any, error) {
			var updated StockMovement
			err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
				movement, err := tx.GetMovementForUpdate(ctx, movementID)
				if err != nil {
					return err
				}
				if movement.Type != MovementTypeOpening || movement.LotID != nil {
					return fmt.Errorf("%w: movement %d", ErrNotBackfillable, movementID)
				}
				if movement.Quantity.Sign() <= 0 {
					return ErrInvalidQuantity
				}
				inserted, err := tx.InsertLot(ctx, StockLot{
					ItemID:       movement.ItemID,
					ReceivedDate: movement.MovementDate,
					ReceivedQty:  movement.Quantity,
					AvailableQty: movement.Quantity,
					UnitCost:     movement.UnitCost,
					TotalCost:    shared.Round2(movement.Quantity.Mul(movement.UnitCost)),
				})
				if err != nil {
					return err
				}
				if err := tx.SetMovementLot(ctx, movement.ID, inserted.ID); err != nil {
					return err
				}
				lot = inserted
				movement.LotID = &inserted.ID
				updated = movement
				return nil
			})
			if err != nil {
				return nil, err
			}
			return updated, nil
		})
	if err != nil {
		return StockLot{}, err
	}
	return lot, nil
}
