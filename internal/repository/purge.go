package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
)

// Purger удаляет строку файла и пишет запись аудита в одной транзакции.
type Purger struct {
	tx *TxRunner
}

// NewPurger создаёт Purger поверх пула.
func NewPurger(pool *pgxpool.Pool) *Purger {
	return &Purger{tx: NewTxRunner(pool)}
}

// Purge выполняет hard delete файла (разрешения и версии каскадно) и добавляет entry в журнал.
func (p *Purger) Purge(ctx context.Context, fileID string, entry *model.FileAccessLog) error {
	return p.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := NewFileRepository(tx).HardDelete(ctx, fileID); err != nil {
			return err
		}
		return NewAccessLogRepository(tx).Append(ctx, entry)
	})
}
