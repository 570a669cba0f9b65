package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/reward-admin/internal/model"
)

const purchaseCols = `id, user_id, username, reward_name, category_name, price, image, status, created_at`

func scanPurchase(row rowScanner) (*model.Purchase, error) {
	var (
		p      model.Purchase
		status string
	)
	err := row.Scan(&p.ID, &p.UserID, &p.Username, &p.RewardName, &p.CategoryName, &p.Price, &p.Image, &status, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = model.PurchaseStatus(status)
	return &p, nil
}

// ListPurchases возвращает все покупки, новые первыми.
func (r *PostgresRepository) ListPurchases(ctx context.Context) ([]model.Purchase, error) {
	var res []model.Purchase

	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+purchaseCols+` FROM reward_purchases ORDER BY created_at DESC`,
		)
		if err != nil {
			return fmt.Errorf("select purchases: %w", err)
		}
		defer rows.Close()

		res = res[:0]
		for rows.Next() {
			p, err := scanPurchase(rows)
			if err != nil {
				return fmt.Errorf("scan purchase: %w", err)
			}
			res = append(res, *p)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// ApprovePurchase переводит покупку из pending в approved.
func (r *PostgresRepository) ApprovePurchase(ctx context.Context, id string) (*model.Purchase, error) {
	var p *model.Purchase

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		p, err = transition(ctx, tx, id, model.PurchaseStatusApproved)
		return err
	})
	if err != nil {
		return nil, err
	}

	return p, nil
}

// RejectPurchase переводит покупку из pending в rejected и в той же транзакции
// записывает маркер причитающегося возврата.
func (r *PostgresRepository) RejectPurchase(ctx context.Context, id string) (*model.Purchase, error) {
	var p *model.Purchase

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		p, err = transition(ctx, tx, id, model.PurchaseStatusRejected)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO refund_markers (purchase_id, user_id, username, amount) VALUES ($1, $2, $3, $4)`,
			p.ID, p.UserID, p.Username, p.Price,
		)
		if err != nil {
			return fmt.Errorf("insert refund marker: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return p, nil
}

// transition выполняет условное обновление статуса: запись происходит,
// только если покупка всё ещё в статусе pending.
func transition(ctx context.Context, tx pgx.Tx, id string, to model.PurchaseStatus) (*model.Purchase, error) {
	p, err := scanPurchase(tx.QueryRow(ctx,
		`UPDATE reward_purchases SET status = $2
		 WHERE id = $1 AND status = $3
		 RETURNING `+purchaseCols,
		id, string(to), string(model.PurchaseStatusPending),
	))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update purchase status: %w", err)
	}

	var current string
	err = tx.QueryRow(ctx, `SELECT status FROM reward_purchases WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select purchase status: %w", err)
	}

	return nil, fmt.Errorf("%w: current status %s", ErrNotPending, current)
}

// Stats возвращает количество категорий, наград и покупок.
func (r *PostgresRepository) Stats(ctx context.Context) (*model.Stats, error) {
	var s model.Stats

	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`SELECT
			   (SELECT COUNT(*) FROM reward_categories),
			   (SELECT COUNT(*) FROM rewards),
			   (SELECT COUNT(*) FROM reward_purchases),
			   (SELECT COUNT(*) FROM reward_purchases WHERE status = $1)`,
			string(model.PurchaseStatusPending),
		).Scan(&s.Categories, &s.Products, &s.Purchases, &s.PendingPurchases)
	})
	if err != nil {
		return nil, fmt.Errorf("select stats: %w", err)
	}

	return &s, nil
}
