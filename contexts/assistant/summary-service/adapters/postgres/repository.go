package postgresadapter

import (
	"context"
	"time"

	"txengine/contexts/assistant/summary-service/domain/entities"

	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&summaryModel{})
}

func (r *Repository) SaveSummary(ctx context.Context, record entities.SummaryRecord) error {
	row := summaryModel{
		ID:            record.ID,
		InputText:     record.InputText,
		OutputSummary: record.OutputSummary,
		CreatedAt:     record.CreatedAt.UTC(),
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *Repository) ListSummaries(ctx context.Context, limit int) ([]entities.SummaryRecord, error) {
	var rows []summaryModel
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]entities.SummaryRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, entities.SummaryRecord{
			ID:            row.ID,
			InputText:     row.InputText,
			OutputSummary: row.OutputSummary,
			CreatedAt:     row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

type summaryModel struct {
	ID            string    `gorm:"column:id;primaryKey"`
	InputText     string    `gorm:"column:input_text;type:text;not null"`
	OutputSummary string    `gorm:"column:output_summary;type:text;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;not null;index"`
}

func (summaryModel) TableName() string {
	return "summary_requests"
}
