package domain

type PurchaseState string

const (
	PurchaseIdle       PurchaseState = "idle"
	PurchaseInProgress PurchaseState = "in_progress"
	PurchaseSucceeded  PurchaseState = "succeeded"
	PurchaseFailed     PurchaseState = "failed"
)

// OrderIDNotAvailable is reported when a successful response names no order.
const OrderIDNotAvailable = "N/A"

func (s PurchaseState) IsTerminal() bool {
	return s == PurchaseSucceeded || s == PurchaseFailed
}

// String representation (for logging)
func (s PurchaseState) String() string {
	return string(s)
}

var transitions = map[PurchaseState][]PurchaseState{
	PurchaseIdle:       {PurchaseInProgress},
	PurchaseInProgress: {PurchaseSucceeded, PurchaseFailed},
	PurchaseSucceeded:  {PurchaseIdle, PurchaseInProgress},
	PurchaseFailed:     {PurchaseIdle, PurchaseInProgress},
}

func CanTransitionTo(from, to PurchaseState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PurchaseStatus is the UI-facing state of the last purchase. Never persisted.
type PurchaseStatus struct {
	State   PurchaseState `json:"state"`
	OrderID string        `json:"order_id,omitempty"`
	Message string        `json:"message,omitempty"`
}

func IdleStatus() PurchaseStatus {
	return PurchaseStatus{State: PurchaseIdle}
}

func InProgressStatus() PurchaseStatus {
	return PurchaseStatus{State: PurchaseInProgress}
}

func SucceededStatus(orderID string) PurchaseStatus {
	if orderID == "" {
		orderID = OrderIDNotAvailable
	}
	return PurchaseStatus{State: PurchaseSucceeded, OrderID: orderID}
}

func FailedStatus(message string) PurchaseStatus {
	return PurchaseStatus{State: PurchaseFailed, Message: message}
}
