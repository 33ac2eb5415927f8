package monitor

// 便捷函数供外部调用，无需访问 Metrics 实例

func ObserveRequest(route string, status int, seconds float64) {
	GetMetrics().ObserveRequest(route, status, seconds)
}

func IncSignalsIngested(environment string) {
	GetMetrics().IncSignalsIngested(environment)
}

func IncIngestRejected(reason string) {
	GetMetrics().IncIngestRejected(reason)
}

func IncAuthFailure(reason string) {
	GetMetrics().IncAuthFailure(reason)
}

func IncCacheHit(cacheType string) {
	GetMetrics().IncCacheHit(cacheType)
}

func IncCacheMiss(cacheType string) {
	GetMetrics().IncCacheMiss(cacheType)
}

func IncSignalsForwarded(outcome string) {
	GetMetrics().IncSignalsForwarded(outcome)
}

func SetNATSConnected(connected bool) {
	GetMetrics().SetNATSConnected(connected)
}

func IncUsageQueueFull() {
	GetMetrics().IncUsageQueueFull()
}

func ObserveBatchWriteSize(size int) {
	GetMetrics().ObserveBatchWriteSize(size)
}

func ObserveBatchWriteDuration(duration float64) {
	GetMetrics().ObserveBatchWriteDuration(duration)
}
