package ir

// NOTE: These are store-layer types exchanged between the transaction
// batcher and the storage collaborator.

// LinkSide selects which endpoint of a link row a query matches on.
type LinkSide int

const (
	SideX LinkSide = iota
	SideY
)

// LinkQuery filters link rows by one endpoint. Empty optional filters match
// anything.
type LinkQuery struct {
	Side     LinkSide
	ModelID  string
	RecordID string

	FieldX     string // optional
	FieldY     string // optional
	OtherModel string // optional, model of the opposite endpoint
}

// OperationBatch is the unit of storage writes: every operation of one
// model in a transaction.
type OperationBatch struct {
	TxnID   string
	UserID  string
	ModelID string
	Ops     []Operation
}

// OperationResult reports the outcome of one operation of a batch.
// Err is nil when the update was applied.
type OperationResult struct {
	Op      Operation
	Version int64
	Err     error
}

// AppliedOperation is one row of the operation log.
type AppliedOperation struct {
	ID       int64    `json:"id"` // Auto-increment (store row id)
	TxnID    string   `json:"txn_id"`
	Seq      int64    `json:"seq"`
	ModelID  string   `json:"model_id"`
	RecordID string   `json:"record_id"`
	Updates  IRObject `json:"updates"`
	Previous IRObject `json:"previous"`
	Version  int64    `json:"version"`
	UserID   string   `json:"user_id"`
}

// TransactionInfo summarises a committed transaction.
type TransactionInfo struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Operations int    `json:"operations"`
}
