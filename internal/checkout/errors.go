package checkout

import "errors"

var (
	ErrEmptyCart           = errors.New("cart is empty, nothing to purchase")
	ErrPurchaseInProgress  = errors.New("a purchase is already in progress")
	ErrPurchaseFailed      = errors.New("purchase failed")
	IllegalTransitionError = errors.New("illegal transition of purchase status")
)
