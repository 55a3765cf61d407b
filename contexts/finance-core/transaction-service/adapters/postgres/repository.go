package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"txengine/contexts/finance-core/transaction-service/domain/entities"
	domainerrors "txengine/contexts/finance-core/transaction-service/domain/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the SQL Transaction Store. It runs on any gorm dialector
// that supports ON CONFLICT (PostgreSQL in production, SQLite for local runs).
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&transactionModel{})
}

// Put inserts transaction, or overwrites the row with the same id. An
// overwrite keeps the stored immutable columns and may only move the status
// from pending to a terminal one.
func (r *Repository) Put(ctx context.Context, transaction entities.Transaction) error {
	if strings.TrimSpace(transaction.TransactionID) == "" ||
		strings.TrimSpace(transaction.IdempotencyKey) == "" ||
		!transaction.Status.Valid() {
		return domainerrors.ErrInvalidInput
	}

	row := transactionModelFromEntity(transaction)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted := tx.
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "transaction_id"}},
				DoNothing: true,
			}).
			Create(&row)
		if inserted.Error != nil {
			if isUniqueViolation(inserted.Error) {
				return domainerrors.ErrIdempotencyKeyTaken
			}
			return inserted.Error
		}
		if inserted.RowsAffected == 1 {
			return nil
		}

		var existing transactionModel
		if err := tx.Where("transaction_id = ?", row.TransactionID).First(&existing).Error; err != nil {
			return err
		}
		if existing.IdempotencyKey != row.IdempotencyKey {
			return domainerrors.ErrInvalidInput
		}
		if existing.Status == row.Status {
			return nil
		}
		updatedAt := row.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = time.Now().UTC()
		}
		if _, err := existing.toEntity().Transition(transaction.Status, updatedAt); err != nil {
			return err
		}

		updated := tx.
			Model(&transactionModel{}).
			Where("transaction_id = ? AND status = ?", row.TransactionID, string(entities.StatusPending)).
			Updates(map[string]any{
				"status":     row.Status,
				"updated_at": updatedAt,
			})
		if updated.Error != nil {
			return updated.Error
		}
		if updated.RowsAffected == 0 {
			return domainerrors.ErrInvalidTransition
		}
		return nil
	})
}

// Create inserts a new row and reports ErrIdempotencyKeyTaken when the key is
// already bound, without touching the existing row.
func (r *Repository) Create(ctx context.Context, transaction entities.Transaction) error {
	if strings.TrimSpace(transaction.TransactionID) == "" ||
		strings.TrimSpace(transaction.IdempotencyKey) == "" {
		return domainerrors.ErrInvalidInput
	}

	row := transactionModelFromEntity(transaction)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "idempotency_key"}},
			DoNothing: true,
		}).
		Create(&row)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return domainerrors.ErrIdempotencyKeyTaken
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrIdempotencyKeyTaken
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, transactionID string) (entities.Transaction, error) {
	return r.first(ctx, "transaction_id = ?", strings.TrimSpace(transactionID))
}

func (r *Repository) GetByIdempotencyKey(ctx context.Context, key string) (entities.Transaction, error) {
	return r.first(ctx, "idempotency_key = ?", strings.TrimSpace(key))
}

func (r *Repository) List(ctx context.Context) ([]entities.Transaction, error) {
	var rows []transactionModel
	if err := r.db.WithContext(ctx).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: true}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "transaction_id"}, Desc: true}).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]entities.Transaction, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// CompleteTransaction is a conditional pending -> terminal write; at most one
// caller can win it per transaction.
func (r *Repository) CompleteTransaction(
	ctx context.Context,
	transactionID string,
	status entities.Status,
	completedAt time.Time,
) (entities.Transaction, error) {
	if !status.Terminal() {
		return entities.Transaction{}, domainerrors.ErrInvalidTransition
	}

	transactionID = strings.TrimSpace(transactionID)
	result := r.db.WithContext(ctx).
		Model(&transactionModel{}).
		Where("transaction_id = ? AND status = ?", transactionID, string(entities.StatusPending)).
		Updates(map[string]any{
			"status":     string(status),
			"updated_at": completedAt.UTC(),
		})
	if result.Error != nil {
		return entities.Transaction{}, result.Error
	}

	current, err := r.GetByID(ctx, transactionID)
	if err != nil {
		return entities.Transaction{}, err
	}
	if result.RowsAffected == 0 {
		r.logger.Warn("terminal write rejected",
			"event", "transaction_terminal_write_rejected",
			"module", "finance-core/transaction-service",
			"layer", "adapter",
			"transaction_id", transactionID,
			"current_status", current.Status,
			"target_status", status,
		)
		return entities.Transaction{}, domainerrors.ErrInvalidTransition
	}
	return current, nil
}

func (r *Repository) first(ctx context.Context, query string, arg string) (entities.Transaction, error) {
	var row transactionModel
	err := r.db.WithContext(ctx).
		Where(query, arg).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Transaction{}, domainerrors.ErrTransactionNotFound
		}
		return entities.Transaction{}, err
	}
	return row.toEntity(), nil
}

type transactionModel struct {
	TransactionID  string          `gorm:"column:transaction_id;primaryKey"`
	UserID         string          `gorm:"column:user_id;not null"`
	Amount         decimal.Decimal `gorm:"column:amount;type:numeric;not null"`
	Type           string          `gorm:"column:type;not null"`
	Status         string          `gorm:"column:status;not null;default:pending"`
	IdempotencyKey string          `gorm:"column:idempotency_key;not null;uniqueIndex:transactions_unique_idempotency_key"`
	CreatedAt      time.Time       `gorm:"column:created_at;not null;index:transactions_created_at_idx"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;not null"`
}

func (transactionModel) TableName() string {
	return "transactions"
}

func transactionModelFromEntity(transaction entities.Transaction) transactionModel {
	return transactionModel{
		TransactionID:  transaction.TransactionID,
		UserID:         transaction.UserID,
		Amount:         transaction.Amount,
		Type:           transaction.Type,
		Status:         string(transaction.Status),
		IdempotencyKey: transaction.IdempotencyKey,
		CreatedAt:      transaction.CreatedAt.UTC(),
		UpdatedAt:      transaction.UpdatedAt.UTC(),
	}
}

func (m transactionModel) toEntity() entities.Transaction {
	return entities.Transaction{
		TransactionID:  m.TransactionID,
		UserID:         m.UserID,
		Amount:         m.Amount,
		Type:           m.Type,
		Status:         entities.Status(m.Status),
		IdempotencyKey: m.IdempotencyKey,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
