package entity

import "time"

// IntentKind identifies the marketplace workflow a TransactionIntent runs.
type IntentKind int

const (
	IntentMint IntentKind = iota + 1
	IntentList
	IntentBuy
	IntentMakeOffer
	IntentAcceptOffer
	IntentCancelOffer
)

func (k IntentKind) String() string {
	switch k {
	case IntentMint:
		return "mint"
	case IntentList:
		return "list"
	case IntentBuy:
		return "buy"
	case IntentMakeOffer:
		return "make_offer"
	case IntentAcceptOffer:
		return "accept_offer"
	case IntentCancelOffer:
		return "cancel_offer"
	default:
		return "unknown"
	}
}

// IntentStatus tracks a TransactionIntent through its saga.
type IntentStatus int

const (
	IntentPending IntentStatus = iota
	IntentSubmitted
	IntentConfirmed
	IntentFailed
)

func (s IntentStatus) String() string {
	switch s {
	case IntentSubmitted:
		return "submitted"
	case IntentConfirmed:
		return "confirmed"
	case IntentFailed:
		return "failed"
	default:
		return "pending"
	}
}

// MarshalText renders the status as a string in JSON.
func (s IntentStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transitions can happen.
func (s IntentStatus) Terminal() bool {
	return s == IntentConfirmed || s == IntentFailed
}

// TransactionIntent is the in-memory record of one workflow run. It is discarded once the result is returned.
type TransactionIntent struct {
	ID        string       `json:"id"`
	Kind      IntentKind   `json:"-"`
	Account   string       `json:"account"`
	ChainID   uint64       `json:"chainId"`
	Status    IntentStatus `json:"status"`
	TxHashes  []string     `json:"txHashes,omitempty"`
	Error     string       `json:"error,omitempty"`
	StartedAt time.Time    `json:"startedAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// HistoryType is the value of the store's transactions.type column.
type HistoryType string

const (
	HistoryMint  HistoryType = "mint"
	HistorySale  HistoryType = "sale"
	HistoryList  HistoryType = "list"
	HistoryOffer HistoryType = "offer"
)

// NotificationKind is the value of the store's notifications.type column.
type NotificationKind string

const (
	NotificationOffer         NotificationKind = "offer"
	NotificationOfferAccepted NotificationKind = "offer_accepted"
	NotificationSale          NotificationKind = "sale"
	NotificationPriceAlert    NotificationKind = "price_alert"
)

// OfferStatus is the value of the store's offers.status column.
type OfferStatus string

const (
	OfferPending   OfferStatus = "pending"
	OfferAccepted  OfferStatus = "accepted"
	OfferCancelled OfferStatus = "cancelled"
)

// ReconciliationJob describes an off-chain write waiting to be retried.
type ReconciliationJob struct {
	Description string    `json:"description"`
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"lastError,omitempty"`
	QueuedAt    time.Time `json:"queuedAt"`
}
