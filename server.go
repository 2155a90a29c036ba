package bonito

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	stats_api "github.com/fukata/golang-stats-api-handler"
	"github.com/kayac/Bonito/config"
	"github.com/kayac/Bonito/fcmv1"
	"github.com/lestrrat-go/server-starter/listener"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/netutil"
)

// Provider defines Bonito httpHandler and has a state
// of queue which is shared by the supervisor.
type Provider struct {
	Sup Supervisor
}

// ResponseHandler provides you to implement handling on success or on error response from fcm.
// Therefore, you can specifies hook command which is set at toml file.
type ResponseHandler interface {
	OnResponse(Result)
	HookCmd() string
}

// DefaultResponseHandler is the default ResponseHandler if not specified.
type DefaultResponseHandler struct {
	Hook string
}

// OnResponse is performed when to receive result from FCM.
func (rh DefaultResponseHandler) OnResponse(result Result) {
}

// HookCmd returns hook command to execute after getting response from FCM
// only when to get error response.
func (rh DefaultResponseHandler) HookCmd() string {
	return rh.Hook
}

// StartServer starts a fcm v1 provider server on http.
func StartServer(conf config.Config) {
	// Initialize DefaultResponseHandler if response handlers are not defined.
	if successResponseHandler == nil {
		InitSuccessResponseHandler(DefaultResponseHandler{})
	}

	if errorResponseHandler == nil {
		InitErrorResponseHandler(DefaultResponseHandler{Hook: conf.Provider.ErrorHook})
	}

	// Init Provider
	srvStats = NewStats()
	srvMetrics = NewMetrics(nil)
	prov := &Provider{}

	srvStats.DebugPort = conf.Provider.DebugPort
	LogWithFields(logrus.Fields{
		"type": "provider",
	}).Infof("Size of POST request queue is %d", conf.Provider.QueueSize)

	// start supervisor
	sup, err := StartSupervisor(&conf)
	if err != nil {
		LogWithFields(logrus.Fields{
			"type": "provider",
		}).Fatalf("Failed to start Bonito: %s", err.Error())
	}
	prov.Sup = sup

	LogWithFields(logrus.Fields{
		"type":       "supervisor",
		"project_id": conf.FCMv1.ProjectID,
	}).Infof("Starts supervisor")

	// StartServer listener
	listeners, err := listener.ListenAll()
	if err != nil {
		LogWithFields(logrus.Fields{
			"type": "provider",
		}).Infof("%s. If you want graceful to restart Bonito, you should use 'start_server' (github.com/lestrrat-go/server-starter).", err)
	}

	// Start bonito provider server
	var lis net.Listener
	if err == listener.ErrNoListeningTarget {
		// Fallback if not running under ServerStarter
		service := fmt.Sprintf(":%d", conf.Provider.Port)
		lis, err = net.Listen("tcp", service)
		if err != nil {
			LogWithFields(logrus.Fields{
				"type": "provider",
			}).Error(err)
			sup.Shutdown()
			return
		}
	} else {
		if l, ok := listeners[0].Addr().(*net.TCPAddr); ok && l.Port != conf.Provider.Port {
			LogWithFields(logrus.Fields{
				"type": "provider",
			}).Infof("'start_server' starts on :%d", l.Port)
			// Starts Bonito under ServerStarter.
			conf.Provider.Port = l.Port
		}
		lis = listeners[0]
	}

	// If many connections establishs between Bonito provider and your application,
	// Bonito provider would be overload, and decrease performance.
	llis := netutil.LimitListener(lis, conf.Provider.MaxConnections)

	// Start Bonito provider
	LogWithFields(logrus.Fields{
		"type": "provider",
	}).Infof("Starts provider on :%d ...", conf.Provider.Port)

	srv := &http.Server{Handler: prov.Handler()}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		if err := srv.Serve(llis); err != nil && err != http.ErrServerClosed {
			LogWithFields(logrus.Fields{}).Error(err)
		}
		wg.Done()
	}()

	// signal handling
	wg.Add(1)
	go startSignalReciever(&wg, srv)

	// wait for server shutdown complete
	wg.Wait()

	LogWithFields(logrus.Fields{
		"type": "provider",
	}).Info("Stopping server")

	// if Bonito server stop, Close queue
	sup.Shutdown()
}

// Handler returns the mux which routes all of the provider endpoints.
func (prov *Provider) Handler() http.Handler {
	mux := http.NewServeMux()
	LogWithFields(logrus.Fields{
		"type": "provider",
	}).Infof("Enable endpoint /push/fcm/v1")
	mux.HandleFunc("/push/fcm/v1", prov.PushFCMv1Handler())
	mux.HandleFunc("/stats/app", prov.StatsHandler())
	mux.HandleFunc("/stats/profile", stats_api.Handler)
	if srvMetrics != nil {
		mux.Handle("/metrics", srvMetrics.Handler())
	}
	return mux
}

// PushFCMv1Handler accepts a fcm v1 payload or an array of them.
func (prov *Provider) PushFCMv1Handler() http.HandlerFunc {
	return http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		atomic.AddInt64(&(srvStats.RequestCount), 1)

		// Method Not Alllowed
		if err := validateMethod(res, req); err != nil {
			logrus.Warn(err)
			return
		}

		// only Content-Type application/json
		c := req.Header.Get("Content-Type")
		if c != ApplicationJSON {
			// Unsupported Media Type
			logrus.Warnf("Unsupported Media Type: %s", c)
			res.WriteHeader(http.StatusUnsupportedMediaType)
			writeReason(res, "Unsupported Media Type")
			return
		}

		// create request for fcm
		reqs, err := newFCMv1Requests(req.Body)
		if err != nil {
			logrus.Warnf("bad request: %s", err)
			res.WriteHeader(http.StatusBadRequest)
			writeReason(res, err.Error())
			return
		}

		// enqueues one request into supervisor's queue.
		if err := prov.Sup.EnqueueClientRequest(&reqs); err != nil {
			setRetryAfter(res, req, err.Error())
			return
		}
		srvMetrics.IncRequests(len(reqs))

		// success
		res.WriteHeader(http.StatusOK)
		fmt.Fprint(res, "{\"result\": \"ok\"}")
	})
}

func newFCMv1Requests(src io.Reader) ([]Request, error) {
	r := bufio.NewReader(src)
	dec := json.NewDecoder(r)

	var payloads []fcmv1.Payload
	if isJSONArray(r) {
		if err := dec.Decode(&payloads); err != nil {
			return nil, err
		}
	} else {
		var payload fcmv1.Payload
		if err := dec.Decode(&payload); err != nil {
			return nil, err
		}
		payloads = append(payloads, payload)
	}

	if err := validatePayloads(payloads); err != nil {
		return nil, err
	}

	reqs := make([]Request, 0, len(payloads))
	for _, p := range payloads {
		reqs = append(reqs, Request{Payload: p})
	}
	return reqs, nil
}

// isJSONArray peeks the first non-space byte.
func isJSONArray(r *bufio.Reader) bool {
	for i := 1; ; i++ {
		b, err := r.Peek(i)
		if err != nil {
			return false
		}
		switch c := b[i-1]; c {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			return c == '['
		}
	}
}

func validatePayloads(ps []fcmv1.Payload) error {
	if len(ps) == 0 {
		return errors.New("Payload must not be empty")
	}

	if len(ps) > config.MaxRequestSize {
		return errors.Errorf("Payload was too long. Be less than %d: %v", config.MaxRequestSize, len(ps))
	}

	for _, p := range ps {
		if p.Recipient() == "" {
			return errors.New("Payload format was malformed: message requires token, topic or condition")
		}
	}
	return nil
}

func validateMethod(res http.ResponseWriter, req *http.Request) error {
	if req.Method != "POST" {
		res.WriteHeader(http.StatusMethodNotAllowed)
		writeReason(res, "Method Not Allowed.")
		return fmt.Errorf("Method Not Allowed: %s", req.Method)
	}
	return nil
}

func writeReason(res http.ResponseWriter, reason string) {
	var b bytes.Buffer
	json.NewEncoder(&b).Encode(struct {
		Reason string `json:"reason"`
	}{reason})
	res.Write(bytes.TrimSpace(b.Bytes()))
}

func setRetryAfter(res http.ResponseWriter, req *http.Request, reason string) {
	atomic.StoreInt64(&(srvStats.ServiceUnavailableAt), time.Now().Unix())
	// Retry-After is set seconds
	res.Header().Set("Retry-After", fmt.Sprintf("%d", atomic.LoadInt64(&srvStats.RetryAfter)))
	res.WriteHeader(http.StatusServiceUnavailable)
	writeReason(res, reason)
}

// StatsHandler returns the statistics of the provider.
func (prov *Provider) StatsHandler() http.HandlerFunc {
	return http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		if ok := validateStatsHandler(res, req); !ok {
			return
		}

		wqs := 0
		for _, w := range prov.Sup.workers {
			wqs += len(w.queue)
		}

		atomic.StoreInt64(&(srvStats.QueueSize), int64(len(prov.Sup.queue)))
		atomic.StoreInt64(&(srvStats.WorkersQueueSize), int64(wqs))
		atomic.StoreInt64(&(srvStats.CommandQueueSize), int64(len(prov.Sup.cmdq)))

		b, err := json.Marshal(srvStats.Snapshot())
		if err != nil {
			res.WriteHeader(http.StatusInternalServerError)
			writeReason(res, "Internal Server Error")
			return
		}
		res.Header().Set("Content-Type", ApplicationJSON)
		res.WriteHeader(http.StatusOK)
		res.Write(b)
	})
}

func validateStatsHandler(res http.ResponseWriter, req *http.Request) bool {
	// Method Not Alllowed
	if req.Method != "GET" {
		res.WriteHeader(http.StatusMethodNotAllowed)
		writeReason(res, "Method Not Allowed.")
		logrus.Warnf("Method Not Allowed: %s", req.Method)
		return false
	}

	return true
}

func startSignalReciever(wg *sync.WaitGroup, srv *http.Server) {
	defer wg.Done()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGINT)
	s := <-sigChan
	switch s {
	case syscall.SIGHUP:
		LogWithFields(logrus.Fields{
			"type": "provider",
		}).Info("Bonito recieved SIGHUP signal.")
	case syscall.SIGTERM:
		LogWithFields(logrus.Fields{
			"type": "provider",
		}).Info("Bonito recieved SIGTERM signal.")
	case syscall.SIGINT:
		LogWithFields(logrus.Fields{
			"type": "provider",
		}).Info("Bonito recieved SIGINT signal. Stopping server now...")
	}
	srv.Shutdown(context.Background())
}
