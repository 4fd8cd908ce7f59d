package sheets

import (
	"context"

	"fintrack/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerWriter appends materialized instances to an external ledger.
	LedgerWriter interface {
		AppendInstance(ctx context.Context, inst core.Instance) (rowRef string, err error)
	}
)

// Header is the column layout every ledger adapter writes.
var Header = []string{
	"Date", "User", "Kind", "Description", "Amount", "Currency",
	"Category", "Due Date", "Next Due", "Status", "Template", "Instance",
}
