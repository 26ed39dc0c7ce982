package storage

import "context"

// Journal records what poolkit did on chain: one Run per command
// invocation, plus the deployments and transactions it produced.
type Journal interface {
	// Run lifecycle
	StartRun(ctx context.Context, run *Run) error
	CompleteRun(ctx context.Context, id string, runErr error) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, chainID int64, limit int) ([]Run, error)

	// Deployments
	RecordDeployment(ctx context.Context, d *Deployment) error
	ListDeployments(ctx context.Context, chainID int64) ([]Deployment, error)
	LatestDeployment(ctx context.Context, chainID int64, name string) (*Deployment, error)

	// Transactions
	RecordTx(ctx context.Context, tx *TxRecord) error
	ListTxs(ctx context.Context, chainID int64, limit int) ([]TxRecord, error)
	GetTxByHash(ctx context.Context, txHash string) (*TxRecord, error)

	// Lifecycle
	Close() error
}

// Nop is a Journal that stores nothing. Used when JOURNAL_PATH is empty.
type Nop struct{}

var _ Journal = Nop{}

func (Nop) StartRun(context.Context, *Run) error        { return nil }
func (Nop) CompleteRun(context.Context, string, error) error { return nil }
func (Nop) GetRun(context.Context, string) (*Run, error) { return nil, nil }
func (Nop) ListRuns(context.Context, int64, int) ([]Run, error) { return nil, nil }
func (Nop) RecordDeployment(context.Context, *Deployment) error { return nil }
func (Nop) ListDeployments(context.Context, int64) ([]Deployment, error) { return nil, nil }
func (Nop) LatestDeployment(context.Context, int64, string) (*Deployment, error) { return nil, nil }
func (Nop) RecordTx(context.Context, *TxRecord) error { return nil }
func (Nop) ListTxs(context.Context, int64, int) ([]TxRecord, error) { return nil, nil }
func (Nop) GetTxByHash(context.Context, string) (*TxRecord, error) { return nil, nil }
func (Nop) Close() error { return nil }
