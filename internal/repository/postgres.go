// Package repository содержит реализацию хранилища документов в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound возвращается, если запись не найдена.
var (
	ErrNotFound = errors.New("record not found")
	// ErrCategoryNotFound возвращается, если категория, на которую ссылается награда, не найдена.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrCategoryInUse возвращается при попытке удалить категорию, на которую ссылаются награды.
	ErrCategoryInUse = errors.New("category in use")
	// ErrNotPending возвращается, если покупка уже вышла из статуса pending.
	ErrNotPending = errors.New("purchase is not pending")
	// ErrRefundApplied возвращается, если возврат по покупке уже зачислен.
	ErrRefundApplied = errors.New("refund already applied")
)

var defaultRetryDelays = []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

// pgxPool описывает подмножество методов пула, используемое репозиторием.
type pgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresRepository предоставляет доступ к коллекциям каталога, покупок и счетов пользователей.
type PostgresRepository struct {
	pool        pgxPool
	retryDelays []time.Duration
}

// NewPostgresRepository создаёт новый репозиторий и применяет миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresRepository{pool: pool, retryDelays: defaultRetryDelays}, nil
}

func newWithPool(pool pgxPool, retryDelays []time.Duration) *PostgresRepository {
	return &PostgresRepository{pool: pool, retryDelays: retryDelays}
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// withRetry повторяет идемпотентное чтение при сетевых ошибках и конфликтах сериализации.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	return r.retry(ctx, func(err error) bool {
		return isSerializationError(err) || isConnectionError(err)
	}, fn)
}

// withTxRetry повторяет транзакцию только если она гарантированно откатилась.
func (r *PostgresRepository) withTxRetry(ctx context.Context, fn func() error) error {
	return r.retry(ctx, isSerializationError, fn)
}

func (r *PostgresRepository) retry(ctx context.Context, retryable func(error) bool, fn func() error) error {
	var err error

	for i := 0; i <= len(r.retryDelays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !retryable(err) || i == len(r.retryDelays) {
			break
		}

		timer := time.NewTimer(r.retryDelays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return err
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return false
}

func isConnectionError(err error) bool {
	if pgconn.SafeToRetry(err) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset by peer")
}

// inTx выполняет fn в транзакции и фиксирует её, если fn не вернула ошибку.
func (r *PostgresRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return r.withTxRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := fn(tx); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}
