package model

import "time"

// ContentChange 对应 content_changes 表中一条被跟踪的页面内容变更。
type ContentChange struct {
	ID            int64     `json:"id" gorm:"column:id"`
	PageID        int64     `json:"page_id" gorm:"column:page_id"`
	ChangeType    string    `json:"change_type" gorm:"column:change_type"`
	ChangeSummary string    `json:"change_summary" gorm:"column:change_summary"`
	DetectedAt    time.Time `json:"detected_at" gorm:"column:detected_at"`
	Notified      bool      `json:"notified" gorm:"column:notified"`
	PageURL       string    `json:"page_url" gorm:"column:page_url"`
}

// AlertEvent 是推送到 Kafka 的内容变更告警事件。
type AlertEvent struct {
	ChangeID      int64     `json:"changeId"`
	PageURL       string    `json:"pageUrl"`
	ChangeType    string    `json:"changeType"`
	ChangeSummary string    `json:"changeSummary"`
	DetectedAt    time.Time `json:"detectedAt"`
	PublishedAt   time.Time `json:"publishedAt"`
}
