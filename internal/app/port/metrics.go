package port

import "time"

// Metrics records operational counters. Implementations must be safe for concurrent use.
type Metrics interface {
	ObserveWorkflow(kind, outcome string, duration time.Duration)
	IncRPCCall(network, method, outcome string)
	IncWalletRequest(method, outcome string)
	IncReadModelRefresh(view, outcome string)
	SetReconciliationPending(n int)
}
