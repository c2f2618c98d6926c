package model

import "time"

// Sector 部门，流程编码以部门编码为前缀.
type Sector struct {
	ID          uint      `gorm:"primaryKey"              json:"id"`
	Code        string    `gorm:"size:16;uniqueIndex"     json:"code"`
	Name        string    `gorm:"size:128;not null"       json:"name"`
	Description string    `gorm:"type:text"               json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
