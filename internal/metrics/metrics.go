package metrics

type Counter interface {
	Inc()
}

type Metrics struct {
	TradesExecuted      Counter
	TradesRejected      Counter
	PersistenceFailures Counter
	PriceFetchFailures  Counter
}

type noopCounter struct{}

func (noopCounter) Inc() {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		TradesExecuted:      n,
		TradesRejected:      n,
		PersistenceFailures: n,
		PriceFetchFailures:  n,
	}
}
