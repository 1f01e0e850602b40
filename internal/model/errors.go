package model

import (
	"errors"

	"github.com/rotisserie/eris"
)

// Error taxonomy for the ingestion pipeline. Handlers map these to HTTP
// status codes; the queue worker uses them to decide retryability.
var (
	// ErrValidation marks bad caller input. Never retried.
	ErrValidation = eris.New("validation error")

	// ErrNotFound marks an unknown job or document id.
	ErrNotFound = eris.New("not found")

	// ErrNoScraper means no registered scraper matches the URL. The job
	// fails on its first attempt; retrying cannot help.
	ErrNoScraper = eris.New("no scraper available")

	// ErrExtraction means a required field was missing from a scraped
	// page. Non-retryable: re-scraping the same malformed page will not
	// succeed.
	ErrExtraction = eris.New("extraction error")

	// ErrExhaustedRetries is the terminal job failure after max attempts.
	ErrExhaustedRetries = eris.New("retries exhausted")
)

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsNotFound reports whether err is an unknown-id failure.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsRetryable reports whether a job error should consume another attempt.
// Validation, extraction, and scraper-selection failures are permanent by
// construction; everything else (browser timeouts, network, service
// errors) is treated as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNoScraper) ||
		errors.Is(err, ErrExtraction) {
		return false
	}
	return true
}
