package posting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian/internal/accounting/journals"
	"github.com/meridian-erp/meridian/internal/inventory"
)

// JournalPort is the slice of the journal engine the poster drives.
type JournalPort interface {
	CreateDraft(ctx context.Context, input journals.DraftInput) (journals.JournalEntry, error)
	Post(ctx context.Context, entryID int64) (journals.JournalEntry, error)
}

// CostingPort is the slice of the lot costing engine the poster drives.
type CostingPort interface {
	Receive(ctx context.Context, input inventory.ReceiveInput) (inventory.StockLot, inventory.StockMovement, error)
	Consume(ctx context.Context, input inventory.ConsumeInput) (inventory.ConsumeResult, error)
	Reverse(ctx context.Context, movementID int64, actorID int64) (inventory.StockMovement, error)
	LinkJournal(ctx context.Context, movementID, entryID int64) error
}

// ErrCompensationFailed indicates a consumed movement could not be rolled
// back after a posting failure. This needs operator attention: lot state
// and the ledger disagree until the reversal is replayed.
var ErrCompensationFailed = errors.New("posting: compensation failed")

// Poster translates business events into balanced journal entries, pairing
// the costing engine with the journal engine.
type Poster struct {
	journal  JournalPort
	costing  CostingPort
	set      DefaultAccountSet
	validate *validator.Validate
	logger   *slog.Logger
}

// NewPoster builds a Poster.
func NewPoster(journal JournalPort, costing CostingPort, set DefaultAccountSet, logger *slog.Logger) *Poster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poster{
		journal:  journal,
		costing:  costing,
		set:      set,
		validate: validator.New(),
		logger:   logger,
	}
}

// StockOutInput describes an outbound shipment or sale to cost and post.
type StockOutInput struct {
	ItemID    int64  `validate:"required,gt=0"`
	Quantity  decimal.Decimal
	SaleDate  time.Time
	Reference string `validate:"required"`
	ActorID   int64
}

// PostStockOutWithCOGS consumes FIFO lots and posts the cost of goods sold:
// debit COGS, credit Inventory, at aggregate historical cost. Consumption
// and posting are choreographed as one logical transaction: if the post
// fails after lots were consumed, the consumption is reversed.
func (p *Poster) PostStockOutWithCOGS(ctx context.Context, input StockOutInput) (journals.JournalEntry, inventory.ConsumeResult, error) {
	if err := p.validate.Struct(input); err != nil {
		return journals.JournalEntry{}, inventory.ConsumeResult{}, err
	}
	if input.Quantity.Sign() <= 0 {
		return journals.JournalEntry{}, inventory.ConsumeResult{}, inventory.ErrInvalidQuantity
	}
	result, err := p.costing.Consume(ctx, inventory.ConsumeInput{
		ItemID:    input.ItemID,
		Quantity:  input.Quantity,
		AsOfDate:  input.SaleDate,
		Reference: input.Reference,
		Type:      inventory.MovementTypeSale,
		ActorID:   input.ActorID,
	})
	if err != nil {
		return journals.JournalEntry{}, inventory.ConsumeResult{}, err
	}
	entry, err := p.draftAndPost(ctx, journals.DraftInput{
		Date:         input.SaleDate,
		Description:  fmt.Sprintf("COGS for %s", input.Reference),
		Reference:    fmt.Sprintf("STOCK-OUT-%d", result.Movement.ID),
		SourceModule: "inventory.stock_out",
		CreatedBy:    input.ActorID,
		Lines: []journals.LineInput{
			{AccountID: p.set.COGS, Debit: result.TotalCost, Description: "Cost of goods sold"},
			{AccountID: p.set.Inventory, Credit: result.TotalCost, Description: "Inventory relief"},
		},
	})
	if err != nil {
		return journals.JournalEntry{}, inventory.ConsumeResult{}, p.compensate(ctx, result.Movement.ID, input.ActorID, err)
	}
	if err := p.costing.LinkJournal(ctx, result.Movement.ID, entry.ID); err != nil {
		p.logger.Warn("movement left unlinked to journal entry",
			slog.Int64("movement_id", result.Movement.ID),
			slog.Int64("entry_id", entry.ID),
			slog.Any("error", err))
	}
	return entry, result, nil
}

// StockInInput describes a receipt to record and post to the GL.
type StockInInput struct {
	ItemID       int64 `validate:"required,gt=0"`
	Quantity     decimal.Decimal
	UnitCost     decimal.Decimal
	ReceivedDate time.Time
	Reference    string `validate:"required"`
	ActorID      int64
}

// PostStockInWithGL records a receipt lot and posts debit Inventory,
// credit Accounts Payable for its value.
func (p *Poster) PostStockInWithGL(ctx context.Context, input StockInInput) (journals.JournalEntry, inventory.StockMovement, error) {
	if err := p.validate.Struct(input); err != nil {
		return journals.JournalEntry{}, inventory.StockMovement{}, err
	}
	if input.Quantity.Sign() <= 0 {
		return journals.JournalEntry{}, inventory.StockMovement{}, inventory.ErrInvalidQuantity
	}
	if input.UnitCost.Sign() < 0 {
		return journals.JournalEntry{}, inventory.StockMovement{}, inventory.ErrInvalidUnitCost
	}
	_, movement, err := p.costing.Receive(ctx, inventory.ReceiveInput{
		ItemID:       input.ItemID,
		Quantity:     input.Quantity,
		UnitCost:     input.UnitCost,
		ReceivedDate: input.ReceivedDate,
		Reference:    input.Reference,
		Type:         inventory.MovementTypeStockIn,
		ActorID:      input.ActorID,
	})
	if err != nil {
		return journals.JournalEntry{}, inventory.StockMovement{}, err
	}
	entry, err := p.draftAndPost(ctx, journals.DraftInput{
		Date:         input.ReceivedDate,
		Description:  fmt.Sprintf("Stock receipt %s", input.Reference),
		Reference:    fmt.Sprintf("STOCK-IN-%d", movement.ID),
		SourceModule: "inventory.stock_in",
		CreatedBy:    input.ActorID,
		Lines: []journals.LineInput{
			{AccountID: p.set.Inventory, Debit: movement.TotalCost, Description: "Inventory received"},
			{AccountID: p.set.Payable, Credit: movement.TotalCost, Description: "Accounts payable accrual"},
		},
	})
	if err != nil {
		return journals.JournalEntry{}, inventory.StockMovement{}, err
	}
	if err := p.costing.LinkJournal(ctx, movement.ID, entry.ID); err != nil {
		p.logger.Warn("movement left unlinked to journal entry",
			slog.Int64("movement_id", movement.ID),
			slog.Int64("entry_id", entry.ID),
			slog.Any("error", err))
	}
	movement.JournalEntryID = &entry.ID
	return entry, movement, nil
}

// InvoiceInput describes a sales invoice to post.
type InvoiceInput struct {
	Reference string `validate:"required"`
	Currency  string `validate:"omitempty,len=3"`
	Date      time.Time
	NetAmount decimal.Decimal
	TaxAmount decimal.Decimal
	ActorID   int64
}

// PostInvoice posts debit Receivable for the gross amount against credit
// Revenue (net) and credit Tax Payable (tax).
func (p *Poster) PostInvoice(ctx context.Context, input InvoiceInput) (journals.JournalEntry, error) {
	if err := p.validate.Struct(input); err != nil {
		return journals.JournalEntry{}, err
	}
	if input.NetAmount.Sign() <= 0 || input.TaxAmount.Sign() < 0 {
		return journals.JournalEntry{}, errors.New("posting: invoice amounts invalid")
	}
	gross := input.NetAmount.Add(input.TaxAmount)
	lines := []journals.LineInput{
		{AccountID: p.set.Receivable, Debit: gross, Description: "Accounts receivable"},
		{AccountID: p.set.Revenue, Credit: input.NetAmount, Description: "Revenue"},
	}
	if input.TaxAmount.Sign() > 0 {
		lines = append(lines, journals.LineInput{AccountID: p.set.TaxPayable, Credit: input.TaxAmount, Description: "Tax payable"})
	}
	return p.draftAndPost(ctx, journals.DraftInput{
		Date:         input.Date,
		Description:  fmt.Sprintf("Invoice %s", input.Reference),
		Reference:    input.Reference,
		SourceModule: "sales.invoice",
		Currency:     input.Currency,
		CreatedBy:    input.ActorID,
		Lines:        lines,
	})
}

// PaymentInput describes a customer payment to post.
type PaymentInput struct {
	Reference string `validate:"required"`
	Currency  string `validate:"omitempty,len=3"`
	Date      time.Time
	Amount    decimal.Decimal
	ActorID   int64
}

// PostPayment posts debit Cash against credit Receivable.
func (p *Poster) PostPayment(ctx context.Context, input PaymentInput) (journals.JournalEntry, error) {
	if err := p.validate.Struct(input); err != nil {
		return journals.JournalEntry{}, err
	}
	if input.Amount.Sign() <= 0 {
		return journals.JournalEntry{}, errors.New("posting: payment amount invalid")
	}
	return p.draftAndPost(ctx, journals.DraftInput{
		Date:         input.Date,
		Description:  fmt.Sprintf("Payment %s", input.Reference),
		Reference:    input.Reference,
		SourceModule: "sales.payment",
		Currency:     input.Currency,
		CreatedBy:    input.ActorID,
		Lines: []journals.LineInput{
			{AccountID: p.set.Cash, Debit: input.Amount, Description: "Cash received"},
			{AccountID: p.set.Receivable, Credit: input.Amount, Description: "Receivable settled"},
		},
	})
}

func (p *Poster) draftAndPost(ctx context.Context, input journals.DraftInput) (journals.JournalEntry, error) {
	draft, err := p.journal.CreateDraft(ctx, input)
	if err != nil {
		return journals.JournalEntry{}, err
	}
	return p.journal.Post(ctx, draft.ID)
}

// compensate reverses a consumed movement after a failed post. The original
// error always surfaces; a failed reversal is joined onto it.
func (p *Poster) compensate(ctx context.Context, movementID, actorID int64, cause error) error {
	if _, err := p.costing.Reverse(ctx, movementID, actorID); err != nil {
		p.logger.Error("failed to reverse consumption after posting failure",
			slog.Int64("movement_id", movementID),
			slog.Any("error", err))
		return errors.Join(cause, fmt.Errorf("%w: movement %d: %v", ErrCompensationFailed, movementID, err))
	}
	return cause
}
