package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// NewQuestID returns a short random quest identifier such as "Q3f2a9c0d1e".
func NewQuestID() string {
	return "Q" + strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

// IsQuestID reports whether s has the shape NewQuestID produces.
func IsQuestID(s string) bool {
	if len(s) != 11 || s[0] != 'Q' {
		return false
	}
	for _, c := range s[1:] {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return false
		}
	}
	return true
}

// Quest covers both player quests (Manual) and reaction missions.
type Quest struct {
	bun.BaseModel `bun:"table:quests,alias:q"`

	ID                string    `bun:"id,pk"`
	GuildID           string    `bun:"guild_id,notnull"`
	PublisherID       string    `bun:"publisher_id,notnull"`
	ReviewerID        string    `bun:"reviewer_id,notnull,default:''"`
	Name              string    `bun:"name,notnull"`
	Description       string    `bun:"description,notnull,default:''"`
	RewardDescription string    `bun:"reward_description,notnull,default:''"`
	RewardExp         int64     `bun:"reward_exp,notnull,default:0"`
	RewardSilver      int64     `bun:"reward_silver,notnull,default:0"`
	Manual            bool      `bun:"manual,notnull"`
	MultipleTakers    bool      `bun:"multiple_takers,notnull"`
	Repeatable        bool      `bun:"repeatable,notnull"`
	PublishedByAdmin  bool      `bun:"published_by_admin,notnull,default:false"`
	ExpireDate        time.Time `bun:"expire_date,notnull"`
	CreatedAt         time.Time `bun:"created_at,notnull"`
}

func (q *Quest) Expired(now time.Time) bool {
	return q.ExpireDate.Before(now)
}

type QuestRecord struct {
	bun.BaseModel `bun:"table:quest_records,alias:qr"`

	ID           int64      `bun:"id,pk,autoincrement"`
	QuestID      string     `bun:"quest_id,notnull"`
	TakerID      string     `bun:"taker_id,notnull"`
	ReviewerID   string     `bun:"reviewer_id,notnull,default:''"`
	RecordNote   string     `bun:"record_note,notnull,default:''"`
	Manual       bool       `bun:"manual,notnull"`
	NeedReview   bool       `bun:"need_review,notnull,default:false"`
	CompleteDate *time.Time `bun:"complete_date,nullzero"`
	FailDate     *time.Time `bun:"fail_date,nullzero"`
	QuestEnded   bool       `bun:"quest_ended,notnull,default:false"`
	CreatedAt    time.Time  `bun:"created_at,notnull"`

	Quest *Quest `bun:"rel:belongs-to,join:quest_id=id"`
}
