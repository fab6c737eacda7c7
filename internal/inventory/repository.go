package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian/internal/platform/db"
)

// Repository encapsulates DB operations for lots and movements.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetMovement(ctx context.Context, movementID int64) (StockMovement, error)
	ListOpenLots(ctx context.Context, itemID int64) ([]StockLot, error)
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	InsertLot(ctx context.Context, lot StockLot) (StockLot, error)
	// GetLotsForUpdate locks and returns eligible lots in FIFO order:
	// received_date ascending, id ascending for same-day tie-breaks.
	GetLotsForUpdate(ctx context.Context, itemID int64, asOf time.Time) ([]StockLot, error)
	GetLotForUpdate(ctx context.Context, lotID int64) (StockLot, error)
	UpdateLotAvailable(ctx context.Context, lotID int64, available decimal.Decimal) error
	InsertMovement(ctx context.Context, movement StockMovement) (StockMovement, error)
	InsertConsumptions(ctx context.Context, movementID int64, consumptions []LotConsumption) error
	GetMovementForUpdate(ctx context.Context, movementID int64) (StockMovement, error)
	SetMovementReversedBy(ctx context.Context, movementID, reversalID int64) error
	SetMovementJournal(ctx context.Context, movementID, entryID int64) error
	// SetMovementLot stamps an unlotted movement with its lot. A movement
	// that already has a lot is rejected.
	SetMovementLot(ctx context.Context, movementID, lotID int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a pgx-backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const lotColumns = `id, item_id, received_date, received_qty::text, available_qty::text, reserved_qty::text, unit_cost::text, total_cost::text, version, created_at`

func scanLot(row pgx.Row) (StockLot, error) {
	var lot StockLot
	var received, available, reserved, unitCost, totalCost string
	err := row.Scan(&lot.ID, &lot.ItemID, &lot.ReceivedDate, &received, &available, &reserved, &unitCost, &totalCost, &lot.Version, &lot.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockLot{}, ErrLotNotFound
		}
		return StockLot{}, err
	}
	for _, pair := range []struct {
		raw string
		dst *decimal.Decimal
	}{
		{received, &lot.ReceivedQty},
		{available, &lot.AvailableQty},
		{reserved, &lot.ReservedQty},
		{unitCost, &lot.UnitCost},
		{totalCost, &lot.TotalCost},
	} {
		v, err := decimal.NewFromString(pair.raw)
		if err != nil {
			return StockLot{}, err
		}
		*pair.dst = v
	}
	return lot, nil
}

const movementColumns = `id, item_id, lot_id, type, quantity::text, unit_cost::text, total_cost::text, movement_date, reference, journal_entry_id, reversed_by_id, created_by, created_at`

func scanMovement(row pgx.Row) (StockMovement, error) {
	var m StockMovement
	var qty, unitCost, totalCost string
	err := row.Scan(&m.ID, &m.ItemID, &m.LotID, &m.Type, &qty, &unitCost, &totalCost, &m.MovementDate, &m.Reference, &m.JournalEntryID, &m.ReversedByID, &m.CreatedBy, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockMovement{}, ErrMovementNotFound
		}
		return StockMovement{}, err
	}
	if m.Quantity, err = decimal.NewFromString(qty); err != nil {
		return StockMovement{}, err
	}
	if m.UnitCost, err = decimal.NewFromString(unitCost); err != nil {
		return StockMovement{}, err
	}
	if m.TotalCost, err = decimal.NewFromString(totalCost); err != nil {
		return StockMovement{}, err
	}
	return m, nil
}

func (r *repository) GetMovement(ctx context.Context, movementID int64) (StockMovement, error) {
	m, err := scanMovement(r.db.QueryRow(ctx, `SELECT `+movementColumns+` FROM stock_movements WHERE id=$1`, movementID))
	if err != nil {
		return StockMovement{}, err
	}
	m.Consumptions, err = queryConsumptions(ctx, r.db, movementID)
	return m, err
}

func (r *repository) ListOpenLots(ctx context.Context, itemID int64) ([]StockLot, error) {
	rows, err := r.db.Query(ctx, `SELECT `+lotColumns+` FROM stock_lots WHERE item_id=$1 AND available_qty > 0 ORDER BY received_date ASC, id ASC`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lots []StockLot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryConsumptions(ctx context.Context, q queryer, movementID int64) ([]LotConsumption, error) {
	rows, err := q.Query(ctx, `SELECT id, movement_id, lot_id, qty::text, unit_cost::text FROM lot_consumptions WHERE movement_id=$1 ORDER BY id ASC`, movementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LotConsumption
	for rows.Next() {
		var c LotConsumption
		var qty, unitCost string
		if err := rows.Scan(&c.ID, &c.MovementID, &c.LotID, &qty, &unitCost); err != nil {
			return nil, err
		}
		if c.Qty, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		if c.UnitCost, err = decimal.NewFromString(unitCost); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertLot(ctx context.Context, lot StockLot) (StockLot, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO stock_lots (item_id, received_date, received_qty, available_qty, reserved_qty, unit_cost, total_cost, version)
VALUES ($1,$2,$3,$4,0,$5,$6,1) RETURNING id, created_at`,
		lot.ItemID, lot.ReceivedDate, lot.ReceivedQty.String(), lot.AvailableQty.String(), lot.UnitCost.String(), lot.TotalCost.String())
	if err := row.Scan(&lot.ID, &lot.CreatedAt); err != nil {
		return StockLot{}, err
	}
	lot.Version = 1
	return lot, nil
}

func (r *txRepository) GetLotsForUpdate(ctx context.Context, itemID int64, asOf time.Time) ([]StockLot, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+lotColumns+` FROM stock_lots
WHERE item_id=$1 AND received_date <= $2 AND available_qty > 0
ORDER BY received_date ASC, id ASC FOR UPDATE`, itemID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lots []StockLot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

func (r *txRepository) GetLotForUpdate(ctx context.Context, lotID int64) (StockLot, error) {
	return scanLot(r.tx.QueryRow(ctx, `SELECT `+lotColumns+` FROM stock_lots WHERE id=$1 FOR UPDATE`, lotID))
}

func (r *txRepository) UpdateLotAvailable(ctx context.Context, lotID int64, available decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE stock_lots SET available_qty=$2, version=version+1 WHERE id=$1`, lotID, available.String())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrLotNotFound
	}
	return nil
}

func (r *txRepository) InsertMovement(ctx context.Context, movement StockMovement) (StockMovement, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO stock_movements (item_id, lot_id, type, quantity, unit_cost, total_cost, movement_date, reference, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id, created_at`,
		movement.ItemID, movement.LotID, movement.Type, movement.Quantity.String(), movement.UnitCost.String(), movement.TotalCost.String(),
		movement.MovementDate, movement.Reference, movement.CreatedBy)
	if err := row.Scan(&movement.ID, &movement.CreatedAt); err != nil {
		return StockMovement{}, err
	}
	return movement, nil
}

func (r *txRepository) InsertConsumptions(ctx context.Context, movementID int64, consumptions []LotConsumption) error {
	for _, c := range consumptions {
		if _, err := r.tx.Exec(ctx, `INSERT INTO lot_consumptions (movement_id, lot_id, qty, unit_cost) VALUES ($1,$2,$3,$4)`,
			movementID, c.LotID, c.Qty.String(), c.UnitCost.String()); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) GetMovementForUpdate(ctx context.Context, movementID int64) (StockMovement, error) {
	m, err := scanMovement(r.tx.QueryRow(ctx, `SELECT `+movementColumns+` FROM stock_movements WHERE id=$1 FOR UPDATE`, movementID))
	if err != nil {
		return StockMovement{}, err
	}
	m.Consumptions, err = queryConsumptions(ctx, r.tx, movementID)
	return m, err
}

func (r *txRepository) SetMovementReversedBy(ctx context.Context, movementID, reversalID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE stock_movements SET reversed_by_id=$2 WHERE id=$1 AND reversed_by_id IS NULL`, movementID, reversalID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAlreadyReversed
	}
	return nil
}

func (r *txRepository) SetMovementLot(ctx context.Context, movementID, lotID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE stock_movements SET lot_id=$2 WHERE id=$1 AND lot_id IS NULL`, movementID, lotID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotBackfillable
	}
	return nil
}

func (r *txRepository) SetMovementJournal(ctx context.Context, movementID, entryID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE stock_movements SET journal_entry_id=$2 WHERE id=$1`, movementID, entryID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrMovementNotFound
	}
	return nil
}
