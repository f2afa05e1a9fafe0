package classify

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"sparkie-hq/relay/pkg/upstream"
)

var testDefaults = Defaults{
	SoftCooldown:      30 * time.Second,
	HardCooldown:      time.Hour,
	TransientCooldown: 5 * time.Second,
}

func TestClassify_Outcomes(t *testing.T) {
	tests := []struct {
		name          string
		raw           *upstream.RawOutcome
		wantOutcome   Outcome
		wantCooldown  time.Duration
		wantAmbiguous bool
	}{
		{
			name:        "success 200",
			raw:         &upstream.RawOutcome{StatusCode: http.StatusOK, Body: []byte(`{}`)},
			wantOutcome: OutcomeSuccess,
		},
		{
			name:         "transport error is transient",
			raw:          &upstream.RawOutcome{Err: errors.New("dial tcp: connection refused")},
			wantOutcome:  OutcomeTransient,
			wantCooldown: testDefaults.TransientCooldown,
		},
		{
			name:         "timeout is transient",
			raw:          &upstream.RawOutcome{Err: errors.New("context deadline exceeded")},
			wantOutcome:  OutcomeTransient,
			wantCooldown: testDefaults.TransientCooldown,
		},
		{
			name:         "429 without hints is soft limit with default cooldown",
			raw:          &upstream.RawOutcome{StatusCode: http.StatusTooManyRequests},
			wantOutcome:  OutcomeSoftLimit,
			wantCooldown: testDefaults.SoftCooldown,
		},
		{
			name: "429 with retry-after header uses the hint",
			raw: &upstream.RawOutcome{
				StatusCode: http.StatusTooManyRequests,
				RetryAfter: 42 * time.Second,
			},
			wantOutcome:  OutcomeSoftLimit,
			wantCooldown: 42 * time.Second,
		},
		{
			name: "429 with RetryInfo detail prefers the body hint",
			raw: &upstream.RawOutcome{
				StatusCode: http.StatusTooManyRequests,
				RetryAfter: 5 * time.Second,
				Body: []byte(`{"error":{"code":429,"status":"RESOURCE_EXHAUSTED","message":"Resource has been exhausted",` +
					`"details":[{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"17s"}]}}`),
			},
			wantOutcome:  OutcomeSoftLimit,
			wantCooldown: 17 * time.Second,
		},
		{
			name: "429 naming daily quota is a hard limit",
			raw: &upstream.RawOutcome{
				StatusCode: http.StatusTooManyRequests,
				Body: []byte(`{"error":{"code":429,"status":"RESOURCE_EXHAUSTED",` +
					`"message":"Quota exceeded for quota metric 'Generate requests per day'"}}`),
			},
			wantOutcome:  OutcomeHardLimit,
			wantCooldown: testDefaults.HardCooldown,
		},
		{
			name:        "401 is revoked",
			raw:         &upstream.RawOutcome{StatusCode: http.StatusUnauthorized},
			wantOutcome: OutcomeRevoked,
		},
		{
			name:        "403 is revoked",
			raw:         &upstream.RawOutcome{StatusCode: http.StatusForbidden},
			wantOutcome: OutcomeRevoked,
		},
		{
			name: "400 with API_KEY_INVALID is revoked",
			raw: &upstream.RawOutcome{
				StatusCode: http.StatusBadRequest,
				Body:       []byte(`{"error":{"code":400,"status":"API_KEY_INVALID","message":"API key not valid"}}`),
			},
			wantOutcome: OutcomeRevoked,
		},
		{
			name:         "500 is transient",
			raw:          &upstream.RawOutcome{StatusCode: http.StatusInternalServerError},
			wantOutcome:  OutcomeTransient,
			wantCooldown: testDefaults.TransientCooldown,
		},
		{
			name:         "503 is transient",
			raw:          &upstream.RawOutcome{StatusCode: http.StatusServiceUnavailable},
			wantOutcome:  OutcomeTransient,
			wantCooldown: testDefaults.TransientCooldown,
		},
		{
			name:          "unrecognized 400 defaults to ambiguous transient",
			raw:           &upstream.RawOutcome{StatusCode: http.StatusBadRequest, Body: []byte(`{"error":{"message":"bad field"}}`)},
			wantOutcome:   OutcomeTransient,
			wantCooldown:  testDefaults.TransientCooldown,
			wantAmbiguous: true,
		},
		{
			name:          "teapot defaults to ambiguous transient",
			raw:           &upstream.RawOutcome{StatusCode: http.StatusTeapot},
			wantOutcome:   OutcomeTransient,
			wantCooldown:  testDefaults.TransientCooldown,
			wantAmbiguous: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.raw, testDefaults)
			if got.Outcome != tt.wantOutcome {
				t.Errorf("Outcome = %v, want %v", got.Outcome, tt.wantOutcome)
			}
			if got.Cooldown != tt.wantCooldown {
				t.Errorf("Cooldown = %v, want %v", got.Cooldown, tt.wantCooldown)
			}
			if got.Ambiguous != tt.wantAmbiguous {
				t.Errorf("Ambiguous = %v, want %v", got.Ambiguous, tt.wantAmbiguous)
			}
		})
	}
}

func TestClassify_NeverSuccessOnGarbage(t *testing.T) {
	garbage := []*upstream.RawOutcome{
		{StatusCode: http.StatusTooManyRequests, Body: []byte("not json at all")},
		{StatusCode: 399, Body: nil},
		{StatusCode: http.StatusConflict, Body: []byte(`{"weird":true}`)},
	}
	for _, raw := range garbage {
		if got := Classify(raw, testDefaults); got.Outcome == OutcomeSuccess {
			t.Errorf("status %d classified as success", raw.StatusCode)
		}
	}
}

func TestOutcome_String(t *testing.T) {
	cases := map[Outcome]string{
		OutcomeSuccess:   "success",
		OutcomeSoftLimit: "soft_limit",
		OutcomeHardLimit: "hard_limit",
		OutcomeRevoked:   "revoked",
		OutcomeTransient: "transient",
		Outcome(99):      "unknown",
	}
	for outcome, want := range cases {
		if got := outcome.String(); got != want {
			t.Errorf("Outcome(%d).String() = %q, want %q", outcome, got, want)
		}
	}
}
