package httpx

// IsRetryableHTTPStatus classifies a response status as transient. The
// engine's transport calls are attempt-once, so this feeds degradation
// decisions (unavailable vs. rejected), not retries.
func IsRetryableHTTPStatus(code int) bool {
	if code == 408 || code == 429 {
		return true
	}
	return code >= 500 && code <= 599
}
