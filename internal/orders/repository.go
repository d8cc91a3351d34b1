package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/ewaste-funnel/internal/database"
	"github.com/joao-fontenele/ewaste-funnel/internal/domain"
)

const orderColumns = `id, kind, email, status, payload, payment_id, signature, created_at, updated_at`

type OrderRepository struct {
	db  database.Provider
	now func() time.Time
}

func NewOrderRepository(db database.Provider) *OrderRepository {
	return &OrderRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	db, err := r.db.Connect(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(order.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	if order.CreatedAt.IsZero() {
		order.CreatedAt = r.now()
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}
	order.ID = uuid.New().String()

	_, err = db.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, order.ID, order.Kind, order.Email, order.Status, string(payload),
		order.PaymentID, order.Signature, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	db, err := r.db.Connect(ctx)
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// UpdateStatus sets a new status and bumps updated_at in one statement.
// There is no version check; concurrent updates are last-write-wins.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	db, err := r.db.Connect(ctx)
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, `
		UPDATE orders SET status = $1, updated_at = $2
		WHERE id = $3
		RETURNING `+orderColumns,
		status, r.now(), id)
	return scanOrder(row)
}

// List returns at most domain.MaxOrderListSize orders, newest first.
func (r *OrderRepository) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	db, err := r.db.Connect(ctx)
	if err != nil {
		return nil, err
	}

	var conds []string
	var args []any
	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Kind != "" {
		add("kind = $%d", filter.Kind)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at <= $%d", filter.To)
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	args = append(args, domain.MaxOrderListSize)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	orders := []domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(s scanner) (*domain.Order, error) {
	var order domain.Order
	var payload []byte

	err := s.Scan(&order.ID, &order.Kind, &order.Email, &order.Status, &payload,
		&order.PaymentID, &order.Signature, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	order.Payload, err = domain.DecodePayload(order.Kind, payload)
	if err != nil {
		return nil, err
	}

	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return &order, nil
}
