package domain

import "time"

// Idempotency stores the first response produced for a protocol request
// carrying an Idempotency-Key, keyed by (agent_id, scope, key). A worker that
// lost the response of a claim or report retries with the same key and gets
// the stored response back instead of a second state change.
//
// Scope is the logical operation ("claim", "report"); Body holds the JSON
// response that is replayed verbatim.
type Idempotency struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	AgentID   string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_agent_scope_key,priority:1"`
	Scope     string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_agent_scope_key,priority:2"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_agent_scope_key,priority:3"`
	Status    int       `gorm:"type:INTEGER NOT NULL"`
	Body      []byte    `gorm:"type:BLOB NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
