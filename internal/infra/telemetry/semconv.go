package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic convention attribute keys for sweep telemetry.
// Following OpenTelemetry naming conventions: namespace.attribute_name

const (
	// AttrEnvironment specifies the deployment environment (dev/staging/prod) for every metric.
	AttrEnvironment = attribute.Key("environment")
	// AttrPlatform identifies the remote store adapter (shopify, fake).
	AttrPlatform = attribute.Key("platform")
	// AttrOperation differentiates remote operations (products_page, metafields_set, metafield_delete, ...).
	AttrOperation = attribute.Key("operation")
	// AttrResult records the outcome of an operation (success, error code).
	AttrResult = attribute.Key("result")
	// AttrAction labels record outcomes with the decided action kind.
	AttrAction = attribute.Key("sweep.action")
	// AttrStatus communicates the per-record status (skipped, updated, failed).
	AttrStatus = attribute.Key("sweep.status")
	// AttrDecode labels decode fallbacks by the metafield that was defaulted.
	AttrDecode = attribute.Key("sweep.decode")
)

// Metric instrument names.
const (
	MetricRecordsScanned    = "metasweep_records_scanned"
	MetricTagsRemoved       = "metasweep_tags_removed"
	MetricEntriesDeleted    = "metasweep_entries_deleted"
	MetricMutationFailures  = "metasweep_mutation_failures"
	MetricDecodeFallbacks   = "metasweep_decode_fallbacks"
	MetricPageFetchDuration = "metasweep_page_fetch_duration"
	MetricMutationDuration  = "metasweep_mutation_duration"
	MetricRemoteRequests    = "metasweep_remote_requests"
	MetricRemoteDuration    = "metasweep_remote_request_duration"
	MetricThrottleRetries   = "metasweep_throttle_retries"
)

// Result values.
const (
	ResultSuccess = "success"
)

// RecordAttributes returns attributes for per-record metrics.
func RecordAttributes(environment, action, status string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrAction.String(action),
		AttrStatus.String(status),
	}
}

// OperationResultAttributes returns attributes for operation metrics with result classification.
func OperationResultAttributes(environment, platform, operation, result string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrPlatform.String(platform),
		AttrOperation.String(operation),
		AttrResult.String(result),
	}
}

// DecodeAttributes returns attributes for decode fallback metrics.
func DecodeAttributes(environment, field string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrDecode.String(field),
	}
}
