package engine

// Status tracks a single trade request through the engine. Committed
// and Rejected are terminal; a rejected request mutates no state.
type Status string

const (
	StatusRequested Status = "REQUESTED"
	StatusPriced    Status = "PRICED"
	StatusValidated Status = "VALIDATED"
	StatusCommitted Status = "COMMITTED"
	StatusRejected  Status = "REJECTED"
)

func nextStatus(current, target Status) Status {
	switch current {
	case StatusRequested:
		if target == StatusPriced || target == StatusRejected {
			return target
		}
	case StatusPriced:
		if target == StatusValidated || target == StatusRejected {
			return target
		}
	case StatusValidated:
		if target == StatusCommitted || target == StatusRejected {
			return target
		}
	}
	return current
}

type request struct {
	status Status
}

func newRequest() *request {
	return &request{status: StatusRequested}
}

func (r *request) advance(target Status) Status {
	r.status = nextStatus(r.status, target)
	return r.status
}

func (r *request) terminal() bool {
	return r.status == StatusCommitted || r.status == StatusRejected
}
