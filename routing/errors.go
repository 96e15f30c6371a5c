package routing

import "errors"

// ErrBudgetExceeded is returned by the diversity engine when the
// cheapest/fastest possible route still exceeds the payment's fee or
// CLTV budget (section 4.4 step 6).
var ErrBudgetExceeded = errors.New("best available route exceeds payment budget")
