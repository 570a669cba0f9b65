package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/reward-admin/internal/model"
)

// FindAccountByUserID возвращает первый счёт с точным совпадением user_id.
func (r *PostgresRepository) FindAccountByUserID(ctx context.Context, userID string) (*model.UserAccount, error) {
	return r.findAccount(ctx, "user_id", userID)
}

// FindAccountByUsername возвращает первый счёт с точным совпадением username.
func (r *PostgresRepository) FindAccountByUsername(ctx context.Context, username string) (*model.UserAccount, error) {
	return r.findAccount(ctx, "username", username)
}

func (r *PostgresRepository) findAccount(ctx context.Context, column, value string) (*model.UserAccount, error) {
	var a model.UserAccount

	// column берётся только из констант выше.
	query := `SELECT id, user_id, username, COALESCE(amount, 0)
		 FROM user_accounts
		 WHERE ` + column + ` = $1
		 ORDER BY created_at
		 LIMIT 1`

	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx, query, value).Scan(&a.ID, &a.UserID, &a.Username, &a.Amount)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find account by %s: %w", column, err)
	}

	return &a, nil
}

// ApplyRefund зачисляет сумму на счёт и снимает маркер возврата в одной транзакции.
// Если маркера уже нет, возврат был зачислен ранее и возвращается ErrRefundApplied.
func (r *PostgresRepository) ApplyRefund(ctx context.Context, accountID, purchaseID string, amount int64) (int64, error) {
	var newAmount int64

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM refund_markers WHERE purchase_id = $1`, purchaseID)
		if err != nil {
			return fmt.Errorf("delete refund marker: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrRefundApplied
		}

		err = tx.QueryRow(ctx,
			`UPDATE user_accounts SET amount = COALESCE(amount, 0) + $2 WHERE id = $1 RETURNING amount`,
			accountID, amount,
		).Scan(&newAmount)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("credit account: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return newAmount, nil
}

// ListRefundMarkers возвращает незачисленные возвраты, старые первыми.
func (r *PostgresRepository) ListRefundMarkers(ctx context.Context, limit int) ([]model.RefundMarker, error) {
	var res []model.RefundMarker

	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT purchase_id, user_id, username, amount, attempts, last_error, created_at
			 FROM refund_markers
			 ORDER BY created_at
			 LIMIT $1`,
			limit,
		)
		if err != nil {
			return fmt.Errorf("select refund markers: %w", err)
		}
		defer rows.Close()

		res = res[:0]
		for rows.Next() {
			var m model.RefundMarker
			if err := rows.Scan(&m.PurchaseID, &m.UserID, &m.Username, &m.Amount, &m.Attempts, &m.LastError, &m.CreatedAt); err != nil {
				return fmt.Errorf("scan refund marker: %w", err)
			}
			res = append(res, m)
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

// RecordRefundFailure увеличивает счётчик попыток и сохраняет текст последней ошибки.
func (r *PostgresRepository) RecordRefundFailure(ctx context.Context, purchaseID, reason string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE refund_markers SET attempts = attempts + 1, last_error = $2 WHERE purchase_id = $1`,
		purchaseID, reason,
	)
	if err != nil {
		return fmt.Errorf("record refund failure: %w", err)
	}
	return nil
}
