package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// UsageRecord is one unit of consumed quota. Records are append-only and are
// written only after a generation has been verified as successful.
type UsageRecord struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	GenerationType GenerationType  `json:"generation_type"`
	Category       LimitCategory   `json:"category"`
	Tier           Tier            `json:"tier"`
	CreatedAt      time.Time       `json:"created_at"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

// NewUsageRecord builds a record for genType, tagging it with the category
// the type maps onto.
func NewUsageRecord(userID uuid.UUID, genType GenerationType, tier Tier, createdAt time.Time, metadata json.RawMessage) UsageRecord {
	return UsageRecord{
		ID:             uuid.New(),
		UserID:         userID,
		GenerationType: genType,
		Category:       CategoryFor(genType),
		Tier:           tier,
		CreatedAt:      createdAt.UTC(),
		Metadata:       metadata,
	}
}
