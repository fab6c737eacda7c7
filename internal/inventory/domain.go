package inventory

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	MovementTypeOpening  MovementType = "OPENING"
	MovementTypeStockIn  MovementType = "STOCK_IN"
	MovementTypeStockOut MovementType = "STOCK_OUT"
	MovementTypeSale     MovementType = "SALE"
	MovementTypeAdjust   MovementType = "ADJUSTMENT"
	MovementTypeTransfer MovementType = "TRANSFER"
)

// StockLot is one receipt batch with its own cost basis. UnitCost and
// TotalCost are fixed at creation; only AvailableQty moves afterwards,
// downward on consumption and back up on reversal.
type StockLot struct {
	ID           int64
	ItemID       int64
	ReceivedDate time.Time
	ReceivedQty  decimal.Decimal
	AvailableQty decimal.Decimal
	ReservedQty  decimal.Decimal
	UnitCost     decimal.Decimal
	TotalCost    decimal.Decimal
	Version      int64
	CreatedAt    time.Time
}

// StockMovement records one inbound or outbound event. Quantity is signed:
// positive inbound, negative outbound. Outbound movements keep their
// per-lot consumption breakdown so a reversal can restore exact state.
type StockMovement struct {
	ID             int64
	ItemID         int64
	LotID          *int64
	Type           MovementType
	Quantity       decimal.Decimal
	UnitCost       decimal.Decimal
	TotalCost      decimal.Decimal
	MovementDate   time.Time
	Reference      string
	JournalEntryID *int64
	ReversedByID   *int64
	CreatedBy      int64
	CreatedAt      time.Time
	Consumptions   []LotConsumption
}

// LotConsumption is one slice taken from one lot by one movement.
type LotConsumption struct {
	ID         int64
	MovementID int64
	LotID      int64
	Qty        decimal.Decimal
	UnitCost   decimal.Decimal
}

// ConsumedSlice reports one lot's contribution to a consumption, costed at
// that lot's own unit cost. Costing is lot-specific, never averaged.
type ConsumedSlice struct {
	LotID    int64
	Qty      decimal.Decimal
	UnitCost decimal.Decimal
	Cost     decimal.Decimal
}

// ConsumeResult aggregates a FIFO consumption.
type ConsumeResult struct {
	Movement  StockMovement
	Slices    []ConsumedSlice
	TotalCost decimal.Decimal
}

// ReceiveInput describes a stock receipt.
type ReceiveInput struct {
	ItemID       int64
	Quantity     decimal.Decimal
	UnitCost     decimal.Decimal
	ReceivedDate time.Time
	Reference    string
	Type         MovementType
	ActorID      int64
}

// ConsumeInput describes an outbound FIFO consumption.
type ConsumeInput struct {
	ItemID    int64
	Quantity  decimal.Decimal
	AsOfDate  time.Time
	Reference string
	Type      MovementType
	ActorID   int64
}

var (
	// ErrInsufficientStock indicates eligible lots cannot cover the request.
	// Consumption is all-or-nothing; no lot is touched when this fires.
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = errors.New("inventory: quantity must be positive")
	// ErrInvalidUnitCost indicates a negative cost value.
	ErrInvalidUnitCost = errors.New("inventory: unit cost must be >= 0")
	// ErrLotNotFound indicates a missing lot.
	ErrLotNotFound = errors.New("inventory: stock lot not found")
	// ErrMovementNotFound indicates a missing movement.
	ErrMovementNotFound = errors.New("inventory: stock movement not found")
	// ErrAlreadyReversed indicates a movement reversed twice.
	ErrAlreadyReversed = errors.New("inventory: movement already reversed")
	// ErrNotReversible indicates a movement without a consumption breakdown.
	ErrNotReversible = errors.New("inventory: movement is not reversible")
	// ErrLotOverfill indicates a reversal would exceed a lot's received quantity.
	ErrLotOverfill = errors.New("inventory: reversal exceeds lot received quantity")
	// ErrNotBackfillable indicates a backfill target that is not an unlotted
	// OPENING movement, including one already backfilled.
	ErrNotBackfillable = errors.New("inventory: movement is not an unlotted opening")
)
