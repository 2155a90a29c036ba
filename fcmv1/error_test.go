package fcmv1

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func TestClassifyError(t *testing.T) {
	table := map[int]ErrorCode{
		400: InvalidArgument,
		401: ThirdPartyAuthError,
		403: SenderIDMismatch,
		404: Unregistered,
		429: QuotaExceeded,
		500: Internal,
		503: Unavailable,
	}
	for status, code := range table {
		got := ClassifyError(status, "detail")
		if diff := cmp.Diff(got, ServerError{Code: code, Detail: "detail"}); diff != "" {
			t.Errorf("status:%d unexpected classification: %s", status, diff)
		}
		if code.HTTPStatus() != status {
			t.Errorf("%s HTTPStatus must be %d: got %d", code.Status(), status, code.HTTPStatus())
		}
	}

	for _, status := range []int{math.MinInt32, -1, 0, 1, 200, 204, 402, 405, 410, 499, 501, 502, 504, 999, math.MaxInt32} {
		if got := ClassifyError(status, "detail"); got != (ServerError{Code: Unspecified, Detail: "detail"}) {
			t.Errorf("status:%d must be classified as Unspecified: %#v", status, got)
		}
	}
}

func TestClassifyErrorPreservesDetail(t *testing.T) {
	long := strings.Repeat("x", 1<<16)
	for _, detail := range []string{"", " padded ", "MiXeD Case", "multi\nline", "日本語", long} {
		if got := ClassifyError(404, detail); got.Detail != detail {
			t.Errorf("detail was modified: got %q want %q", got.Detail, detail)
		}
	}
}

func TestRenderServerError(t *testing.T) {
	for _, tc := range []struct {
		err      ServerError
		expected string
	}{
		{ServerError{Unspecified, "x"}, "UnspecifiedError: x"},
		{ServerError{InvalidArgument, "x"}, "Invalid Argument: x"},
		{ServerError{Unregistered, "x"}, "Unregistered: x"},
		{ServerError{SenderIDMismatch, "x"}, "Sender Id Mismatch: x"},
		{ServerError{QuotaExceeded, "x"}, "Quota Exceeded: x"},
		{ServerError{Unavailable, "x"}, "Unavailable: x"},
		{ServerError{Internal, "x"}, "Internal : x"},
		{ServerError{ThirdPartyAuthError, "x"}, "Third Party Auth Error: x"},
		{ClassifyError(400, "bad field"), "Invalid Argument: bad field"},
		{ClassifyError(404, ""), "Unregistered: "},
		{ClassifyError(999, "weird"), "UnspecifiedError: weird"},
	} {
		if got := tc.err.Error(); got != tc.expected {
			t.Errorf("unexpected rendering: got %q want %q", got, tc.expected)
		}
		if tc.err.Error() != tc.err.Error() {
			t.Errorf("rendering must be stable: %q", tc.err.Error())
		}
	}
}

func TestRenderError(t *testing.T) {
	for _, tc := range []struct {
		err      Error
		expected string
	}{
		{ErrAuth, "authentication error"},
		{ErrConfig, "configuration error"},
		{ErrDeserialization, "deserialization error"},
		{ErrTimeout, "timeout"},
		{NewServerError(ClassifyError(500, "oops")), "firebase error: Internal : oops"},
		{NewServerError(ClassifyError(429, "slow down")), "firebase error: Quota Exceeded: slow down"},
	} {
		if got := tc.err.Error(); got != tc.expected {
			t.Errorf("unexpected rendering: got %q want %q", got, tc.expected)
		}
	}
}

func TestServerErrorEquality(t *testing.T) {
	if ClassifyError(404, "a") != ClassifyError(404, "a") {
		t.Error("same code and detail must be equal")
	}
	if ClassifyError(404, "a") == ClassifyError(404, "b") {
		t.Error("different details must not be equal")
	}
	if ClassifyError(404, "a") == ClassifyError(400, "a") {
		t.Error("different codes must not be equal")
	}
	if NewServerError(ClassifyError(503, "a")) != NewServerError(ClassifyError(503, "a")) {
		t.Error("same server errors must be equal")
	}
	if NewServerError(ClassifyError(503, "a")) == ErrTimeout {
		t.Error("server error must not equal to timeout")
	}
}

func TestErrorIs(t *testing.T) {
	err := errors.Wrap(ErrTimeout, "Post https://fcm.googleapis.com: i/o timeout")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("%s must be ErrTimeout", err)
	}
	if errors.Is(err, ErrAuth) {
		t.Errorf("%s must not be ErrAuth", err)
	}

	e, ok := AsError(err)
	if !ok {
		t.Fatalf("Error is not found in %s", err)
	}
	if !e.Timeout() || !e.Temporary() {
		t.Errorf("%s must be a temporary timeout", e)
	}

	if _, ok := AsError(errors.New("plain")); ok {
		t.Error("plain error must not be an Error")
	}
}

func TestTemporary(t *testing.T) {
	temporary := map[ErrorCode]bool{
		QuotaExceeded: true,
		Unavailable:   true,
		Internal:      true,
	}
	for _, code := range ErrorCodes {
		e := NewServerError(ServerError{Code: code})
		if e.Temporary() != temporary[code] {
			t.Errorf("%s Temporary must be %v", code.Status(), temporary[code])
		}
		if e.Timeout() {
			t.Errorf("%s must not be a timeout", code.Status())
		}
	}
	for _, e := range []Error{ErrAuth, ErrConfig, ErrDeserialization} {
		if e.Temporary() {
			t.Errorf("%s must not be temporary", e)
		}
	}
}

func TestParseStatus(t *testing.T) {
	for _, code := range ErrorCodes {
		got, ok := ParseStatus(code.Status())
		if !ok || got != code {
			t.Errorf("cannot parse %s: got %v", code.Status(), got)
		}
	}
	if _, ok := ParseStatus("NOT_FOUND"); ok {
		t.Error("NOT_FOUND must not be parsed")
	}
}

func TestErrorMarshalJSON(t *testing.T) {
	b, err := json.Marshal(NewServerError(ClassifyError(404, "gone")))
	if err != nil {
		t.Error(err)
	}
	if string(b) != `{"kind":"server","status":"UNREGISTERED","message":"firebase error: Unregistered: gone"}` {
		t.Errorf("unexpected encoded json: %s", b)
	}

	b, err = json.Marshal(ErrAuth)
	if err != nil {
		t.Error(err)
	}
	if string(b) != `{"kind":"auth","message":"authentication error"}` {
		t.Errorf("unexpected encoded json: %s", b)
	}
}
