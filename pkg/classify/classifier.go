package classify

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"sparkie-hq/relay/pkg/upstream"
)

// Outcome is the classified result of one upstream dispatch.
type Outcome int

const (
	// OutcomeSuccess means the request was fulfilled.
	OutcomeSuccess Outcome = iota

	// OutcomeSoftLimit means the upstream signalled temporary throttling
	// (per-minute rate limit); the credential should cool briefly.
	OutcomeSoftLimit

	// OutcomeHardLimit means the upstream signalled quota exhaustion for a
	// longer window (daily quota); the credential should cool until the
	// quota resets.
	OutcomeHardLimit

	// OutcomeRevoked means the credential was rejected as invalid,
	// unauthorized, or forbidden. Permanent.
	OutcomeRevoked

	// OutcomeTransient means a network or server error unrelated to rate
	// limiting. Retry-eligible with a short cooldown.
	OutcomeTransient
)

// String returns the outcome name for logging and metrics labels.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeSoftLimit:
		return "soft_limit"
	case OutcomeHardLimit:
		return "hard_limit"
	case OutcomeRevoked:
		return "revoked"
	case OutcomeTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// IsFailure reports whether the outcome counts toward a credential's
// consecutive failure streak.
func (o Outcome) IsFailure() bool {
	return o != OutcomeSuccess
}

// Classification is the full result of classifying one raw outcome.
type Classification struct {
	// Outcome is the typed outcome.
	Outcome Outcome

	// Cooldown is the recommended cooldown duration. Zero means the breaker
	// should fall back to its configured default for this outcome.
	Cooldown time.Duration

	// Ambiguous is set when the raw outcome did not match any known shape
	// and the classifier fell back to OutcomeTransient. Never fatal; logged
	// for visibility.
	Ambiguous bool
}

// Defaults carries the configured fallback cooldowns used when the upstream
// supplies no usable hint.
type Defaults struct {
	// SoftCooldown is the fallback for soft limits.
	SoftCooldown time.Duration

	// HardCooldown is the fallback for hard limits when no quota reset time
	// can be computed.
	HardCooldown time.Duration

	// TransientCooldown is the fallback for transient failures.
	TransientCooldown time.Duration
}

// errorBody is the upstream's structured error envelope.
type errorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Type       string `json:"@type"`
			RetryDelay string `json:"retryDelay"`
		} `json:"details"`
	} `json:"error"`
}

// Classify maps one raw upstream outcome to exactly one Classification.
// It is pure: no side effects, no shared state.
func Classify(raw *upstream.RawOutcome, defaults Defaults) Classification {
	// Transport failure: the request never produced an HTTP response, or the
	// per-call timeout fired. Always transient.
	if raw.Err != nil {
		return Classification{Outcome: OutcomeTransient, Cooldown: defaults.TransientCooldown}
	}

	switch {
	case raw.StatusCode >= 200 && raw.StatusCode < 300:
		return Classification{Outcome: OutcomeSuccess}

	case raw.StatusCode == http.StatusTooManyRequests:
		return classifyRateLimited(raw, defaults)

	case raw.StatusCode == http.StatusUnauthorized || raw.StatusCode == http.StatusForbidden:
		return Classification{Outcome: OutcomeRevoked}

	case raw.StatusCode == http.StatusBadRequest && hasStatus(raw.Body, "API_KEY_INVALID", "UNAUTHENTICATED", "PERMISSION_DENIED"):
		// The API reports malformed or disabled keys as 400 with a typed
		// status rather than 401.
		return Classification{Outcome: OutcomeRevoked}

	case raw.StatusCode >= 500:
		return Classification{Outcome: OutcomeTransient, Cooldown: defaults.TransientCooldown}

	default:
		return Classification{
			Outcome:   OutcomeTransient,
			Cooldown:  defaults.TransientCooldown,
			Ambiguous: true,
		}
	}
}

// classifyRateLimited splits 429 responses into soft (per-minute throttling)
// and hard (daily quota) limits, and extracts the recommended cooldown.
func classifyRateLimited(raw *upstream.RawOutcome, defaults Defaults) Classification {
	var body errorBody
	_ = json.Unmarshal(raw.Body, &body) // empty body is fine, defaults apply

	message := strings.ToLower(body.Error.Message)

	if isDailyQuota(message) {
		cooldown := defaults.HardCooldown
		if hinted := retryHint(raw, &body); hinted > cooldown {
			cooldown = hinted
		}
		return Classification{Outcome: OutcomeHardLimit, Cooldown: cooldown}
	}

	cooldown := retryHint(raw, &body)
	if cooldown == 0 {
		cooldown = defaults.SoftCooldown
	}
	return Classification{Outcome: OutcomeSoftLimit, Cooldown: cooldown}
}

// isDailyQuota reports whether the error message names an extended quota
// window rather than short-term throttling.
func isDailyQuota(message string) bool {
	return strings.Contains(message, "per day") ||
		strings.Contains(message, "perday") ||
		strings.Contains(message, "daily")
}

// retryHint returns the most specific retry delay the upstream supplied:
// the RetryInfo detail if present, otherwise the Retry-After header.
func retryHint(raw *upstream.RawOutcome, body *errorBody) time.Duration {
	for _, detail := range body.Error.Details {
		if !strings.HasSuffix(detail.Type, "RetryInfo") || detail.RetryDelay == "" {
			continue
		}
		if d, err := time.ParseDuration(detail.RetryDelay); err == nil && d > 0 {
			return d
		}
	}
	return raw.RetryAfter
}

// hasStatus reports whether the body's error status matches any candidate.
func hasStatus(body []byte, candidates ...string) bool {
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return false
	}
	for _, c := range candidates {
		if parsed.Error.Status == c {
			return true
		}
	}
	return false
}
