package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/reward-admin/internal/model"
)

// CreateCategory создаёт категорию наград.
func (r *PostgresRepository) CreateCategory(ctx context.Context, name string) (*model.Category, error) {
	c := model.Category{ID: uuid.NewString(), Name: name}

	err := r.pool.QueryRow(ctx,
		`INSERT INTO reward_categories (id, name) VALUES ($1, $2) RETURNING created_at`,
		c.ID, c.Name,
	).Scan(&c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert category: %w", err)
	}

	return &c, nil
}

// ListCategories возвращает все категории в порядке создания.
func (r *PostgresRepository) ListCategories(ctx context.Context) ([]model.Category, error) {
	var res []model.Category

	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT c.id, c.name, c.created_at, COUNT(r.id)
			FROM reward_categories c
			LEFT JOIN rewards r ON r.category_name = c.name
			GROUP BY c.id, c.name, c.created_at
			ORDER BY c.created_at`,
		)
		if err != nil {
			return fmt.Errorf("select categories: %w", err)
		}
		defer rows.Close()

		res = res[:0]
		for rows.Next() {
			var c model.Category
			if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.ProductCount); err != nil {
				return fmt.Errorf("scan category: %w", err)
			}
			res = append(res, c)
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

// GetCategory возвращает категорию по идентификатору.
func (r *PostgresRepository) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	var c model.Category

	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`SELECT id, name, created_at FROM reward_categories WHERE id = $1`,
			id,
		).Scan(&c.ID, &c.Name, &c.CreatedAt)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get category: %w", err)
	}

	return &c, nil
}

// RenameCategory переименовывает категорию. При cascade названия категорий
// у наград, ссылающихся на старое имя, обновляются в той же транзакции.
func (r *PostgresRepository) RenameCategory(ctx context.Context, id, name string, cascade bool) (*model.Category, error) {
	c := model.Category{ID: id, Name: name}

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var oldName string
		err := tx.QueryRow(ctx,
			`SELECT name FROM reward_categories WHERE id = $1 FOR UPDATE`,
			id,
		).Scan(&oldName)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lock category: %w", err)
		}

		err = tx.QueryRow(ctx,
			`UPDATE reward_categories SET name = $2 WHERE id = $1 RETURNING created_at`,
			id, name,
		).Scan(&c.CreatedAt)
		if err != nil {
			return fmt.Errorf("update category: %w", err)
		}

		if cascade && oldName != name {
			if _, err := tx.Exec(ctx,
				`UPDATE rewards SET category_name = $2 WHERE category_name = $1`,
				oldName, name,
			); err != nil {
				return fmt.Errorf("cascade category rename: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &c, nil
}

// DeleteCategory удаляет категорию, если на её текущее имя не ссылается ни одна награда.
// Проверка и удаление выполняются под блокировкой строки категории.
func (r *PostgresRepository) DeleteCategory(ctx context.Context, id string) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		var name string
		err := tx.QueryRow(ctx,
			`SELECT name FROM reward_categories WHERE id = $1 FOR UPDATE`,
			id,
		).Scan(&name)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lock category: %w", err)
		}

		var inUse int64
		err = tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM rewards WHERE category_name = $1`,
			name,
		).Scan(&inUse)
		if err != nil {
			return fmt.Errorf("count rewards in category: %w", err)
		}

		if inUse > 0 {
			return fmt.Errorf("%w: %q is used by %d rewards", ErrCategoryInUse, name, inUse)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM reward_categories WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete category: %w", err)
		}

		return nil
	})
}

// lockCategoryName возвращает текущее имя категории, удерживая разделяемую блокировку
// до конца транзакции, чтобы категорию нельзя было удалить параллельно.
func lockCategoryName(ctx context.Context, tx pgx.Tx, id string) (string, error) {
	var name string
	err := tx.QueryRow(ctx,
		`SELECT name FROM reward_categories WHERE id = $1 FOR SHARE`,
		id,
	).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrCategoryNotFound
		}
		return "", fmt.Errorf("lock category: %w", err)
	}
	return name, nil
}
