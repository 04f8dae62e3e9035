package models

import "time"

const (
	RegisterStatusOpen   = "open"
	RegisterStatusClosed = "closed"
)

// RegisterSession is one cash-drawer window on a terminal. OpenTerminal mirrors
// TerminalNumber while the session is open and is NULL afterwards; its unique index
// allows at most one open session per terminal.
type RegisterSession struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	TerminalNumber int        `gorm:"not null;index" json:"terminal_number"`
	OpenTerminal   *int       `gorm:"uniqueIndex" json:"-"`
	Status         string     `gorm:"type:varchar(10);not null" json:"status"`
	OpenedBy       uint       `gorm:"not null;index" json:"opened_by"`
	ClosedBy       *uint      `json:"closed_by,omitempty"`
	OpenedAt       time.Time  `gorm:"not null" json:"opened_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
}

func (s RegisterSession) IsOpen() bool {
	return s.Status == RegisterStatusOpen && s.ClosedAt == nil
}
