package scheduler

import "fmt"

// AccountError records one account's failure inside a batch run without
// stopping the batch.
type AccountError struct {
	AccountID int64
	Err       error
}

func (e AccountError) Error() string {
	return fmt.Sprintf("account %d: %v", e.AccountID, e.Err)
}

// Report summarizes one job run over the billable accounts.
type Report struct {
	Processed int
	Skipped   int
	Failed    []AccountError
}

func (r *Report) ok(n int) {
	r.Processed += n
}

func (r *Report) skip() {
	r.Skipped++
}

func (r *Report) fail(accountID int64, err error) {
	r.Failed = append(r.Failed, AccountError{AccountID: accountID, Err: err})
}

// Err returns nil when every account succeeded.
func (r *Report) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d accounts failed, first: %w",
		len(r.Failed), r.Processed+len(r.Failed), r.Failed[0].Err)
}
