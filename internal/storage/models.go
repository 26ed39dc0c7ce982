// Package storage provides a persistent journal of poolkit runs.
package storage

import (
	"time"

	"github.com/google/uuid"
)

// Run status values.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusError     = "error"
)

// Tx status values.
const (
	TxStatusSuccess  = "success"
	TxStatusReverted = "reverted"
	TxStatusFailed   = "failed" // rejected before mining or no receipt
)

// Run is one command invocation.
type Run struct {
	ID           string     `json:"id"`
	Command      string     `json:"command"`
	ChainID      int64      `json:"chainId"`
	Account      string     `json:"account"`
	StartedAt    time.Time  `json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
}

// NewRun returns a running Run with a fresh id.
func NewRun(command string, chainID int64, account string) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Command:   command,
		ChainID:   chainID,
		Account:   account,
		StartedAt: time.Now().UTC(),
		Status:    RunStatusRunning,
	}
}

// Deployment is a contract created by a run.
type Deployment struct {
	ID          int64     `json:"id"`
	RunID       string    `json:"runId"`
	ChainID     int64     `json:"chainId"`
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	TxHash      string    `json:"txHash"`
	BlockNumber uint64    `json:"blockNumber"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TxRecord is a transaction sent by a run.
type TxRecord struct {
	ID          int64     `json:"id"`
	RunID       string    `json:"runId"`
	ChainID     int64     `json:"chainId"`
	Name        string    `json:"name"` // e.g. "createPool", "approve"
	TxHash      string    `json:"txHash,omitempty"`
	From        string    `json:"from"`
	To          string    `json:"to,omitempty"`
	Nonce       uint64    `json:"nonce"`
	GasLimit    uint64    `json:"gasLimit"`
	GasUsed     uint64    `json:"gasUsed,omitempty"`
	BlockNumber uint64    `json:"blockNumber,omitempty"`
	Status      string    `json:"status"`
	ErrorReason string    `json:"errorReason,omitempty"`
	SentAt      time.Time `json:"sentAt"`
}
