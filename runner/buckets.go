package runner

var (
	defaultHistogramBuckets = []float64{
		0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300, // 10ms, 50ms, 100ms, 250ms, 500ms, 1s, 2.5s, 5s, 10s, 30s, 1m, 5m
	}

	customBuckets = map[string][]float64{
		"bridge_ex_upload_time": {
			1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600, // 1s, 5s, 10s, 30s, 1m, 2m, 5m, 10m, 30m, 1h
		},
		"bridge_ex_rate_limit_wait": {
			0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 60, // 1ms, 10ms, 100ms, 500ms, 1s, 2.5s, 5s, 10s, 1m
		},
	}
)
