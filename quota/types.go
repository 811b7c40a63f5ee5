package quota

import "fmt"

// Admission is the outcome of an admission check.
type Admission struct {
	Allowed   bool `json:"allowed"`
	Current   int  `json:"current"`
	Limit     int  `json:"limit"`
	Requested int  `json:"requested"`
	Available int  `json:"available"`
}

// Err returns nil when the request was admitted, otherwise an error wrapping
// ErrQuotaExceeded that carries the admission figures.
func (a Admission) Err() error {
	if a.Allowed {
		return nil
	}
	return fmt.Errorf("%w: current=%d limit=%d requested=%d available=%d",
		ErrQuotaExceeded, a.Current, a.Limit, a.Requested, a.Available)
}

// Usage summarizes the counter against the capacity limit.
type Usage struct {
	CurrentCount   int     `json:"currentCount"`
	MaxCount       int     `json:"maxCount"`
	AvailableQuota int     `json:"availableQuota"`
	PercentageUsed float64 `json:"percentageUsed"`
}
