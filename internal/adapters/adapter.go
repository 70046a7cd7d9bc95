// Package adapters contains the protocol normalization layer: a closed set
// of protocol listeners that parse their wire format into canonical records
// and call only the ingestion contract. Adapters never write to storage
// directly.
package adapters

import "context"

// Adapter is one protocol listener. The set of running adapters is selected
// via configuration at startup.
type Adapter interface {
	// Name identifies the protocol for logs and metrics.
	Name() string
	// Start begins accepting traffic. It returns once the listener is bound;
	// fatal bind errors surface here.
	Start(ctx context.Context) error
	// Stop drains the adapter, letting in-flight ingestions finish.
	Stop(ctx context.Context) error
}
