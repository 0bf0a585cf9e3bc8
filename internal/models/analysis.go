package models

// AnalysisResult результат статистического анализа свежей оценки пульса
type AnalysisResult struct {
	Timestamp  uint64  `json:"timestamp_us"`
	BPM        uint8   `json:"bpm"`
	RollingAvg float64 `json:"rolling_avg_bpm"`
	StdDev     float64 `json:"stddev_bpm"`
	ZScore     float64 `json:"z_score"`
	IsAnomaly  bool    `json:"is_anomaly"`
}

// HealthStatus представляет статус здоровья сервиса
type HealthStatus struct {
	Status    string `json:"status"`
	Link      string `json:"link"`
	Redis     string `json:"redis"`
	Uptime    string `json:"uptime"`
	Timestamp string `json:"timestamp"`
}

// StatsResponse ответ на запрос статистики конвейера
type StatsResponse struct {
	State              string  `json:"state"`
	Indicator          string  `json:"indicator"`
	BPM                uint8   `json:"bpm"`
	RecordsEmitted     uint64  `json:"records_emitted"`
	WriteFailures      uint64  `json:"write_failures"`
	SamplesAcquired    uint64  `json:"samples_acquired"`
	SensorReadFailures uint64  `json:"sensor_read_failures"`
	SamplesDropped     uint64  `json:"samples_dropped"`
	QueueDepth         int     `json:"queue_depth"`
	QueueCapacity      int     `json:"queue_capacity"`
	RollingAvgBPM      float64 `json:"rolling_avg_bpm"`
	StdDevBPM          float64 `json:"stddev_bpm"`
	Anomalies          uint64  `json:"anomalies"`
	CachedEstimates    int64   `json:"cached_estimates,omitempty"`
}
