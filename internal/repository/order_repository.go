package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/master_scheduler/internal/model"
	"github.com/Freeeeeet/master_scheduler/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const orderColumns = `id, client_id, master_id, status, scheduled_at, created_at, updated_at`

// OrderRepository читает и обновляет заказы. Таблица orders принадлежит
// сервису заказов, здесь трогаем только scheduled_at.
type OrderRepository struct {
	*base.Repository
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{Repository: base.NewRepository(pool)}
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var order model.Order
	err := row.Scan(
		&order.ID,
		&order.ClientID,
		&order.MasterID,
		&order.Status,
		&order.ScheduledAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func collectOrders(rows pgx.Rows, op string) ([]*model.Order, error) {
	defer rows.Close()

	var orders []*model.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}

// GetByID получает заказ по ID
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.Conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	return order, nil
}

// SetScheduledAt выставляет время начала заказа. false, если заказа нет
func (r *OrderRepository) SetScheduledAt(ctx context.Context, id uuid.UUID, scheduledAt time.Time) (bool, error) {
	affected, err := r.ExecAffected(ctx, `
		UPDATE orders
		SET scheduled_at = $2, updated_at = now()
		WHERE id = $1
	`, id, scheduledAt)
	if err != nil {
		return false, fmt.Errorf("set order scheduled_at: %w", err)
	}

	return affected > 0, nil
}

// FindByStatusAndScheduledRange возвращает заказы в статусе status
// с scheduled_at в [from, to]
func (r *OrderRepository) FindByStatusAndScheduledRange(ctx context.Context, status model.OrderStatus, from, to time.Time) ([]*model.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = $1
		  AND scheduled_at BETWEEN $2 AND $3
		ORDER BY scheduled_at
	`

	rows, err := r.Conn(ctx).Query(ctx, query, status, from, to)
	if err != nil {
		return nil, fmt.Errorf("find orders by scheduled range: %w", err)
	}
	return collectOrders(rows, "find orders by scheduled range")
}

// ListUpcoming возвращает ближайшие заказы пользователя (как мастера или клиента)
func (r *OrderRepository) ListUpcoming(ctx context.Context, userID uuid.UUID, status model.OrderStatus, from time.Time, limit int) ([]*model.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE (master_id = $1 OR client_id = $1)
		  AND status = $2
		  AND scheduled_at >= $3
		ORDER BY scheduled_at ASC
		LIMIT $4
	`

	rows, err := r.Conn(ctx).Query(ctx, query, userID, status, from, limit)
	if err != nil {
		return nil, fmt.Errorf("list upcoming orders: %w", err)
	}
	return collectOrders(rows, "list upcoming orders")
}
