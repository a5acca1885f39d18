package ports

// MetricsRecorder receives business counters from the use cases.
type MetricsRecorder interface {
	ProcedureLogged(source string, revenue float64, commission float64)
	CommissionRecomputed(count int)
	OfflineQueueDepth(depth int)
}
