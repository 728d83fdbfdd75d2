package store

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/emirlan/inboxlm/internal/message"
)

// JSONMap stores an open string-keyed attribute bag as a JSON text column.
type JSONMap map[string]string

// Scan implements the sql.Scanner interface.
func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return errors.New("cannot scan JSONMap from non-string/[]byte value")
	}
}

// Value implements the driver.Valuer interface.
func (m JSONMap) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Message is the persisted form of a normalized, optionally annotated
// message. Summary, Sentiment, and Priority stay nil until annotation runs
// (and stay nil forever for self-authored messages).
type Message struct {
	ID         uint             `gorm:"primaryKey" json:"id"`
	Platform   message.Platform `gorm:"not null;type:text;uniqueIndex:idx_messages_platform_external" json:"platform"`
	ExternalID string           `gorm:"not null;type:text;column:external_id;uniqueIndex:idx_messages_platform_external" json:"externalId"`
	Sender     string           `gorm:"type:text" json:"sender"`
	Content    string           `gorm:"not null;type:text" json:"content"`
	Summary    *string          `gorm:"type:text" json:"summary"`
	Sentiment  *int             `json:"sentiment"`
	Priority   *int             `json:"priority"`
	Processed  bool             `gorm:"not null;default:false" json:"processed"`
	Metadata   JSONMap          `gorm:"type:text" json:"metadata"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// TableName returns the table name for Message.
func (Message) TableName() string {
	return "messages"
}

// AiModel is a user-managed registry entry for an alternative AI backend.
// Configuration data only; the annotator does not consult it.
type AiModel struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"not null;type:text" json:"name"`
	Endpoint string `gorm:"not null;type:text" json:"endpoint"`
	APIKey   string `gorm:"not null;type:text;column:api_key" json:"apiKey"`
	Active   bool   `gorm:"not null;default:false" json:"active"`
}

// TableName returns the table name for AiModel.
func (AiModel) TableName() string {
	return "ai_models"
}

// User belongs to the auth collaborator; kept for interface completeness.
type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Username string `gorm:"not null;type:text;uniqueIndex" json:"username"`
	Password string `gorm:"not null;type:text" json:"-"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}

// Stats holds aggregate counts for the dashboard.
type Stats struct {
	TotalMessages  int64
	UrgentMessages int64
	Processed      int64
	ByPlatform     map[message.Platform]int64
}
