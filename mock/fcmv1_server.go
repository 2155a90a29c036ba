package mock

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/kayac/Bonito/fcmv1"
	uuid "github.com/satori/go.uuid"
)

const (
	ApplicationJSON = "application/json"
)

// Tokens which make the mock server respond with the result other than success.
const (
	// TimeoutToken makes the server sleep for ResponseDelay before responding.
	TimeoutToken = "TIMEOUT"
	// BrokenToken makes the server respond with a body which is not JSON.
	BrokenToken = "BROKEN"
)

// ResponseDelay is the sleep time for TimeoutToken.
var ResponseDelay = time.Second * 3

// FCMv1MockServer returns a mux which imitates the FCM v1 send endpoint.
// A message whose token is an FCM error status (e.g. "UNREGISTERED") is rejected with that error.
func FCMv1MockServer(projectID string, verbose bool) *http.ServeMux {
	return newFCMv1MockServer(projectID, verbose, 0)
}

// FCMv1LatencyMockServer is FCMv1MockServer which sleeps about latency for each request.
func FCMv1LatencyMockServer(projectID string, verbose bool, latency time.Duration) *http.ServeMux {
	return newFCMv1MockServer(projectID, verbose, latency)
}

func newFCMv1MockServer(projectID string, verbose bool, latency time.Duration) *http.ServeMux {
	mux := http.NewServeMux()
	p := fmt.Sprintf("/v1/projects/%s/messages:send", projectID)
	if verbose {
		log.Println("fcmv1 mock server path:", p)
	}
	mux.HandleFunc(p, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() {
			if verbose {
				log.Printf("reqtime:%f proto:%s method:%s path:%s host:%s", reqtime(start), r.Proto, r.Method, r.URL.Path, r.RemoteAddr)
			}
		}()

		// sets the response time from FCM server
		if latency > 0 {
			jitter := time.Duration(rand.Int63n(int64(latency)/2+1)) - latency/4
			time.Sleep(latency + jitter)
		}

		w.Header().Set("Content-Type", ApplicationJSON)

		if r.Method != http.MethodPost {
			createFCMv1ErrorResponse(w, fcmv1.InvalidArgument, "method must be POST")
			return
		}
		if r.Header.Get("Authorization") == "" {
			createFCMv1ErrorResponse(w, fcmv1.ThirdPartyAuthError, "missing access token")
			return
		}

		var payload fcmv1.Payload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			createFCMv1ErrorResponse(w, fcmv1.InvalidArgument, err.Error())
			return
		}

		token := payload.Message.Token
		switch token {
		case TimeoutToken:
			time.Sleep(ResponseDelay)
		case BrokenToken:
			fmt.Fprint(w, "<html>502 Bad Gateway</html>")
			return
		}
		if code, ok := fcmv1.ParseStatus(token); ok && code.HTTPStatus() != 0 {
			createFCMv1ErrorResponse(w, code, "mock error:"+token)
			return
		}

		enc := json.NewEncoder(w)
		enc.Encode(fcmv1.ResponseBody{
			Name: fmt.Sprintf("projects/%s/messages/%s", projectID, uuid.NewV4().String()),
		})
	})

	return mux
}

func createFCMv1ErrorResponse(w http.ResponseWriter, code fcmv1.ErrorCode, message string) error {
	w.WriteHeader(code.HTTPStatus())
	enc := json.NewEncoder(w)
	return enc.Encode(fcmv1.ResponseBody{
		Error: &fcmv1.ErrorBody{
			Code:    code.HTTPStatus(),
			Status:  code.Status(),
			Message: message,
			Details: []fcmv1.Detail{
				{
					Type:      "type.googleapis.com/google.firebase.fcm.v1.FcmError",
					ErrorCode: code.Status(),
				},
			},
		},
	})
}

func reqtime(start time.Time) float64 {
	return time.Now().Sub(start).Seconds()
}
