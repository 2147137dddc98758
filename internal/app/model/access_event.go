package model

import "time"

// AccessEvent records one resolution decision for a short code.
type AccessEvent struct {
	ID        string     `json:"id" gorm:"primaryKey;size:36"`
	Code      string     `json:"code" gorm:"size:32;index"`
	Kind      RecordKind `json:"kind" gorm:"size:8"`
	Outcome   string     `json:"outcome" gorm:"size:32;index"`
	IP        string     `json:"ip" gorm:"size:64"`
	UserAgent string     `json:"user_agent" gorm:"type:text"`
	Timestamp time.Time  `json:"timestamp" gorm:"index"`
}

const (
	AccessStreamName     = "ACCESS"
	AccessStreamSubject  = "access.events"
	AccessConsumerName   = "access-logger"
	AccessStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
