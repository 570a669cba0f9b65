package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/reward-admin/internal/model"
)

// ProductWrite содержит поля награды, записываемые при создании и редактировании.
type ProductWrite struct {
	Name       string
	CategoryID string
	Price      int64
	Image      string
}

const productCols = `id, name, category_name, price, image, created_at`

func scanProduct(row rowScanner) (*model.Product, error) {
	var p model.Product
	if err := row.Scan(&p.ID, &p.Name, &p.CategoryName, &p.Price, &p.Image, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProduct создаёт награду, копируя в неё текущее имя выбранной категории.
func (r *PostgresRepository) CreateProduct(ctx context.Context, w ProductWrite) (*model.Product, error) {
	var p *model.Product

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		categoryName, err := lockCategoryName(ctx, tx, w.CategoryID)
		if err != nil {
			return err
		}

		p, err = scanProduct(tx.QueryRow(ctx,
			`INSERT INTO rewards (id, name, category_name, price, image)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING `+productCols,
			uuid.NewString(), w.Name, categoryName, w.Price, w.Image,
		))
		if err != nil {
			return fmt.Errorf("insert reward: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return p, nil
}

// GetProduct возвращает награду по идентификатору.
func (r *PostgresRepository) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	var p *model.Product

	err := r.withRetry(ctx, func() error {
		var err error
		p, err = scanProduct(r.pool.QueryRow(ctx,
			`SELECT `+productCols+` FROM rewards WHERE id = $1`,
			id,
		))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get reward: %w", err)
	}

	return p, nil
}

// ListProducts возвращает все награды в порядке создания.
func (r *PostgresRepository) ListProducts(ctx context.Context) ([]model.Product, error) {
	var res []model.Product

	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx, `SELECT `+productCols+` FROM rewards ORDER BY created_at`)
		if err != nil {
			return fmt.Errorf("select rewards: %w", err)
		}
		defer rows.Close()

		res = res[:0]
		for rows.Next() {
			p, err := scanProduct(rows)
			if err != nil {
				return fmt.Errorf("scan reward: %w", err)
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

// UpdateProduct перезаписывает поля награды и заново копирует имя категории.
func (r *PostgresRepository) UpdateProduct(ctx context.Context, id string, w ProductWrite) (*model.Product, error) {
	var p *model.Product

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		categoryName, err := lockCategoryName(ctx, tx, w.CategoryID)
		if err != nil {
			return err
		}

		p, err = scanProduct(tx.QueryRow(ctx,
			`UPDATE rewards
			 SET name = $2, category_name = $3, price = $4, image = $5
			 WHERE id = $1
			 RETURNING `+productCols,
			id, w.Name, categoryName, w.Price, w.Image,
		))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("update reward: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return p, nil
}

// DeleteProduct удаляет запись о награде.
func (r *PostgresRepository) DeleteProduct(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM rewards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete reward: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
