package kafka

// Topics carried by the prediction pipeline.
const (
	// TopicAudit receives one record per finished request, success or
	// failure, without raw inference results.
	TopicAudit = "visionserve.request-log"
	// TopicMetrics receives the full callback payload for asynchronous
	// requests.
	TopicMetrics = "visionserve.metrics"
	// TopicRequests feeds batch prediction requests to workers.
	TopicRequests = "visionserve.requests"
)
