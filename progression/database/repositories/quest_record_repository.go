package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/uptrace/bun"
)

type QuestRecordRepository interface {
	Create(ctx context.Context, record *models.QuestRecord) error
	Update(ctx context.Context, record *models.QuestRecord) error
	Get(ctx context.Context, id int64) (*models.QuestRecord, error)
	GetForUpdate(ctx context.Context, id int64) (*models.QuestRecord, error)
	GetOpenByTaker(ctx context.Context, takerID string) (*models.QuestRecord, error)
	ExistsByNote(ctx context.Context, questID, takerID, note string) (bool, error)
	CompletedBetween(ctx context.Context, questID, takerID string, from, to time.Time) (bool, error)
	CompletedEver(ctx context.Context, questID, takerID string) (bool, error)
	ListPendingReview(ctx context.Context, guildID string) ([]*models.QuestRecord, error)
	HeldQuestIDs(ctx context.Context, guildID string) ([]string, error)
	CompletedQuestIDs(ctx context.Context, takerID string) ([]string, error)
}

type questRecordRepository struct {
	db bun.IDB
}

func NewQuestRecordRepository(db bun.IDB) QuestRecordRepository {
	return &questRecordRepository{db: db}
}

func (r *questRecordRepository) Create(ctx context.Context, record *models.QuestRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if _, err := r.db.NewInsert().Model(record).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("failed to create quest record: %w", err)
	}
	return nil
}

func (r *questRecordRepository) Update(ctx context.Context, record *models.QuestRecord) error {
	_, err := r.db.NewUpdate().
		Model(record).
		Column("reviewer_id", "need_review", "complete_date", "fail_date", "quest_ended").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update quest record: %w", err)
	}
	return nil
}

func (r *questRecordRepository) Get(ctx context.Context, id int64) (*models.QuestRecord, error) {
	record := new(models.QuestRecord)
	err := r.db.NewSelect().Model(record).Relation("Quest").Where("qr.id = ?", id).Scan(ctx)
	return record, handleError("quest record", id, err)
}

func (r *questRecordRepository) GetForUpdate(ctx context.Context, id int64) (*models.QuestRecord, error) {
	record := new(models.QuestRecord)
	err := forUpdate(r.db, r.db.NewSelect().Model(record).Where("id = ?", id)).Scan(ctx)
	if err != nil {
		return record, handleError("quest record", id, err)
	}
	record.Quest, err = NewQuestRepository(r.db).Get(ctx, record.QuestID)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetOpenByTaker returns the taker's single non-ended player quest record.
func (r *questRecordRepository) GetOpenByTaker(ctx context.Context, takerID string) (*models.QuestRecord, error) {
	record := new(models.QuestRecord)
	err := r.db.NewSelect().
		Model(record).
		Relation("Quest").
		Where("qr.taker_id = ?", takerID).
		Where("qr.manual = ?", true).
		Where("qr.quest_ended = ?", false).
		Limit(1).
		Scan(ctx)
	return record, handleError("open quest record", takerID, err)
}

func (r *questRecordRepository) ExistsByNote(ctx context.Context, questID, takerID, note string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*models.QuestRecord)(nil)).
		Where("quest_id = ?", questID).
		Where("taker_id = ?", takerID).
		Where("record_note = ?", note).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check quest record note: %w", err)
	}
	return exists, nil
}

func (r *questRecordRepository) CompletedBetween(ctx context.Context, questID, takerID string, from, to time.Time) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*models.QuestRecord)(nil)).
		Where("quest_id = ?", questID).
		Where("taker_id = ?", takerID).
		Where("complete_date >= ?", from.UTC()).
		Where("complete_date < ?", to.UTC()).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check completed records: %w", err)
	}
	return exists, nil
}

func (r *questRecordRepository) CompletedEver(ctx context.Context, questID, takerID string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*models.QuestRecord)(nil)).
		Where("quest_id = ?", questID).
		Where("taker_id = ?", takerID).
		Where("complete_date IS NOT NULL").
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check completed records: %w", err)
	}
	return exists, nil
}

func (r *questRecordRepository) ListPendingReview(ctx context.Context, guildID string) ([]*models.QuestRecord, error) {
	var records []*models.QuestRecord
	err := r.db.NewSelect().
		Model(&records).
		Relation("Quest").
		Where("quest.guild_id = ?", guildID).
		Where("qr.need_review = ?", true).
		Where("qr.quest_ended = ?", false).
		Order("qr.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending reviews: %w", err)
	}
	return records, nil
}

// HeldQuestIDs lists quests of the guild that currently have an open record.
func (r *questRecordRepository) HeldQuestIDs(ctx context.Context, guildID string) ([]string, error) {
	var ids []string
	err := r.db.NewSelect().
		Model((*models.QuestRecord)(nil)).
		ColumnExpr("DISTINCT qr.quest_id").
		Join("JOIN quests AS q ON q.id = qr.quest_id").
		Where("q.guild_id = ?", guildID).
		Where("qr.quest_ended = ?", false).
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list held quests: %w", err)
	}
	return ids, nil
}

func (r *questRecordRepository) CompletedQuestIDs(ctx context.Context, takerID string) ([]string, error) {
	var ids []string
	err := r.db.NewSelect().
		Model((*models.QuestRecord)(nil)).
		ColumnExpr("DISTINCT quest_id").
		Where("taker_id = ?", takerID).
		Where("complete_date IS NOT NULL").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed quests: %w", err)
	}
	return ids, nil
}
