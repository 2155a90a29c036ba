package bonito

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/kayac/Bonito/config"
	"github.com/kayac/Bonito/fcmv1"
	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"
)

// Supervisor monitor mutiple fcm clients.
type Supervisor struct {
	queue   chan *[]Request // supervisor's queue that recieves POST requests.
	cmdq    chan Command    // enqueues this command queue when to get response from fcm.
	exit    chan struct{}   // exit channel is used to stop the supervisor.
	wgrp    *sync.WaitGroup // workers
	cgrp    *sync.WaitGroup // command workers
	workers []*Worker
}

// Worker sends notification to fcm.
type Worker struct {
	sender Sender
	queue  chan Request
	respq  chan SenderResponse
	wgrp   *sync.WaitGroup
	sn     int
	id     int
}

// SenderResponse is responses to worker from sender.
type SenderResponse struct {
	Result   fcmv1.Result `json:"response"`
	RespTime float64      `json:"response_time"`
	Req      Request      `json:"request"`
	Err      error        `json:"error_msg"`
	UID      string       `json:"resp_uid"`
}

// Command has execute command and input stream.
type Command struct {
	command string
	input   []byte
}

// EnqueueClientRequest enqueues request to supervisor's queue from external application service
func (s *Supervisor) EnqueueClientRequest(reqs *[]Request) error {
	logf := logrus.Fields{
		"type":         "supervisor",
		"request_size": len(*reqs),
		"queue_size":   len(s.queue),
	}

	select {
	case s.queue <- reqs:
		LogWithFields(logf).Debugf("Enqueued request from provider.")
	default:
		LogWithFields(logf).Warnf("Supervisor's queue is full.")
		return fmt.Errorf("Supervisor's queue is full")
	}

	return nil
}

// StartSupervisor starts supervisor which sends notifications with fcm v1 clients.
func StartSupervisor(conf *config.Config) (Supervisor, error) {
	return StartSupervisorWithSender(conf, func() (Sender, error) {
		return NewSender(conf.FCMv1)
	})
}

// StartSupervisorWithSender starts supervisor. newSender is called once for each worker.
func StartSupervisorWithSender(conf *config.Config, newSender func() (Sender, error)) (Supervisor, error) {
	// Each worker queue accepts the requests which can be processed in FlowRateInterval.
	sn := conf.Provider.SenderNum
	wqSize := sn * int(FlowRateInterval/AverageResponseTime)
	if limit := conf.Provider.RequestQueueSize; wqSize > limit {
		wqSize = limit
	}

	// Initialize DefaultResponseHandler if response handlers are not defined.
	if successResponseHandler == nil {
		InitSuccessResponseHandler(DefaultResponseHandler{})
	}
	if errorResponseHandler == nil {
		InitErrorResponseHandler(DefaultResponseHandler{Hook: conf.Provider.ErrorHook})
	}

	senders := make([]Sender, 0, conf.Provider.WorkerNum)
	for i := 0; i < conf.Provider.WorkerNum; i++ {
		sender, err := newSender()
		if err != nil {
			LogWithFields(logrus.Fields{
				"type": "supervisor",
			}).Errorf("%s", err.Error())
			return Supervisor{}, err
		}
		senders = append(senders, sender)
	}

	// Initialize Supervisor
	s := Supervisor{
		queue: make(chan *[]Request, conf.Provider.QueueSize),
		cmdq:  make(chan Command, wqSize*conf.Provider.WorkerNum),
		exit:  make(chan struct{}, 1),
		wgrp:  &sync.WaitGroup{},
		cgrp:  &sync.WaitGroup{},
	}
	LogWithFields(logrus.Fields{}).Infof("Queue size: %d", cap(s.queue))

	// spawn command
	for i := 0; i < conf.Provider.WorkerNum; i++ {
		s.cgrp.Add(1)
		go func() {
			defer s.cgrp.Done()
			logf := logrus.Fields{"type": "cmd_worker"}
			for c := range s.cmdq {
				LogWithFields(logf).Debugf("invoking command: %s %s", c.command, string(c.input))
				src := bytes.NewBuffer(c.input)
				out, err := invokePipe(c.command, src)
				if err != nil {
					LogWithFields(logf).Errorf("(%s) %s", err.Error(), string(out))
				} else {
					LogWithFields(logf).Debugf("Success to execute command")
				}
			}
		}()
	}

	// Spawn workers
	for i, sender := range senders {
		worker := &Worker{
			id:     i,
			queue:  make(chan Request, wqSize),
			respq:  make(chan SenderResponse, wqSize),
			wgrp:   &sync.WaitGroup{},
			sn:     sn,
			sender: sender,
		}

		s.workers = append(s.workers, worker)
		s.wgrp.Add(1)
		go s.spawnWorker(worker)
		LogWithFields(logrus.Fields{
			"type":      "worker",
			"worker_id": i,
		}).Debugf("Spawned worker-%d.", i)
	}

	return s, nil
}

// Shutdown supervisor
func (s *Supervisor) Shutdown() {
	LogWithFields(logrus.Fields{
		"type": "supervisor",
	}).Infoln("Waiting for stopping supervisor...")

	// Waiting for processing notification requests
	zeroCnt := 0
	tryCnt := 0
	for zeroCnt < RestartWaitCount {
		if len(s.queue)+len(s.cmdq)+s.workersAllQueueLength() > 0 {
			zeroCnt = 0
			tryCnt++
		} else {
			zeroCnt++
			tryCnt = 0
		}

		// force terminate application waiting for over 2 min.
		// RestartWaitCount: 50
		// ShutdownWaitTime: 10 (msec)
		// 40 * 50 * 6 * 10 (msec) / 1,000 / 60 = 2 (min)
		if tryCnt > RestartWaitCount*40*6 {
			break
		}

		time.Sleep(ShutdownWaitTime)
	}
	close(s.exit)
	s.wgrp.Wait()
	// no worker enqueues commands any more
	close(s.cmdq)
	s.cgrp.Wait()
	close(s.queue)

	LogWithFields(logrus.Fields{
		"type": "supervisor",
	}).Infoln("Stoped supervisor.")
}

func (s *Supervisor) spawnWorker(w *Worker) {
	atomic.AddInt64(&(srvStats.Workers), 1)
	defer func() {
		atomic.AddInt64(&(srvStats.Workers), -1)
		s.wgrp.Done()
	}()

	for i := 0; i < w.sn; i++ {
		w.wgrp.Add(1)
		LogWithFields(logrus.Fields{
			"type":      "worker",
			"worker_id": w.id,
		}).Debugf("Spawned a sender-%d-%d.", w.id, i)

		go spawnSender(w.queue, w.respq, w.wgrp, w.sender)
	}

	func() {
		for {
			select {
			case reqs := <-s.queue:
				w.receiveRequests(reqs)
			case resp := <-w.respq:
				w.receiveResponse(resp, s.cmdq)
			case <-s.exit:
				return
			}
		}
	}()

	close(w.queue)
	w.wgrp.Wait()
	close(w.respq)
	// handle responses of notifications which were being sent
	for resp := range w.respq {
		w.receiveResponse(resp, s.cmdq)
	}
}

func (w *Worker) receiveResponse(resp SenderResponse, cmdq chan<- Command) {
	p := resp.Req.Payload
	logf := logrus.Fields{
		"type":           "worker",
		"token":          resp.Result.RecipientIdentifier(),
		"notification":   p.Message.Notification,
		"data":           p.Message.Data,
		"worker_id":      w.id,
		"res_queue_size": len(w.respq),
		"response_time":  resp.RespTime,
		"resp_uid":       resp.UID,
	}
	handleFCMv1Response(resp, cmdq, logf)
}

func handleFCMv1Response(resp SenderResponse, cmdq chan<- Command, logf logrus.Fields) {
	result := resp.Result
	if resp.Err != nil && result.Error == nil {
		e, ok := fcmv1.AsError(resp.Err)
		if !ok {
			e = fcmv1.NewServerError(fcmv1.ClassifyError(result.StatusCode, resp.Err.Error()))
		}
		result.Error = &e
	}
	logf["status"] = result.Status()
	for _, key := range result.ExtraKeys() {
		logf[key] = result.ExtraValue(key)
	}

	if resp.Err != nil {
		// the classified error, the same value the hooks receive
		err := result.Err()
		srvStats.countError(err)
		srvMetrics.IncError(err)
		for k, v := range errorFields(err) {
			logf[k] = v
		}
		LogWithFields(logf).Errorf("%s", resp.Err)
		onResponse(result, errorResponseHandler.HookCmd(), cmdq)
		return
	}

	atomic.AddInt64(&(srvStats.SentCount), 1)
	srvMetrics.IncSent()
	LogWithFields(logf).Info("Succeeded to send a notification")
	onResponse(result, successResponseHandler.HookCmd(), cmdq)
}

func (w *Worker) receiveRequests(reqs *[]Request) {
	logf := logrus.Fields{
		"type":              "worker",
		"worker_id":         w.id,
		"worker_queue_size": len(w.queue),
		"request_size":      len(*reqs),
	}

	for _, req := range *reqs {
		w.queue <- req
		LogWithFields(logf).
			Debugf("Enqueue request into worker's queue")
	}
}

func spawnSender(wq <-chan Request, respq chan<- SenderResponse, wgrp *sync.WaitGroup, sender Sender) {
	defer wgrp.Done()
	for req := range wq {
		start := time.Now()
		result, err := sender.Send(req.Payload)
		respTime := time.Now().Sub(start)
		srvMetrics.ObserveResponseTime(respTime)
		sres := SenderResponse{
			Result:   result,
			RespTime: respTime.Seconds(),
			Req:      req, // Must copy
			Err:      err,
			UID:      uuid.NewV4().String(),
		}

		select {
		case respq <- sres:
			LogWithFields(logrus.Fields{"type": "sender", "resp_queue_size": len(respq)}).
				Debugf("Enqueue response into respq.")
		default:
			LogWithFields(logrus.Fields{"type": "sender", "resp_queue_size": len(respq), "token": result.Token}).
				Warnf("Response queue is full.")
		}
	}
}

func (s Supervisor) workersAllQueueLength() int {
	sum := 0
	for _, w := range s.workers {
		sum += len(w.queue) + len(w.respq)
	}
	return sum
}

func onResponse(result Result, cmd string, cmdq chan<- Command) {
	logf := logrus.Fields{
		"provider": result.Provider(),
		"type":     "on_response",
		"token":    result.RecipientIdentifier(),
	}
	for _, key := range result.ExtraKeys() {
		logf[key] = result.ExtraValue(key)
	}
	// on error handler
	if err := result.Err(); err != nil {
		errorResponseHandler.OnResponse(result)
	} else {
		successResponseHandler.OnResponse(result)
	}

	if cmd == "" {
		return
	}

	b, err := result.MarshalJSON()
	if err != nil {
		LogWithFields(logf).Errorf("Could not encode result: %s", err)
		return
	}
	command := Command{
		command: cmd,
		input:   b,
	}
	select {
	case cmdq <- command:
		LogWithFields(logf).Debugf("Enqueue command: %v", command)
	default:
		LogWithFields(logf).Warnf("Command queue is full, so could not execute commnad: %v", command)
	}
}

func invokePipe(hook string, src io.Reader) ([]byte, error) {
	logf := logrus.Fields{"type": "invoke_pipe"}
	cmd := exec.Command("sh", "-c", hook)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed: %v %s", cmd, err.Error())
	}

	var b bytes.Buffer
	// merge std(out|err) of command to bonito
	if OutputHookStdout {
		cmd.Stdout = os.Stdout
	} else {
		cmd.Stdout = &b
	}
	if OutputHookStderr {
		cmd.Stderr = os.Stderr
	} else {
		cmd.Stderr = &b
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	// src copy to cmd.stdin
	_, err = io.Copy(stdin, src)
	if e, ok := err.(*os.PathError); ok && e.Err == syscall.EPIPE {
		LogWithFields(logf).Errorf("%s", e.Error())
	} else if err != nil {
		LogWithFields(logf).Errorf("failed to write STDIN: cmd( %s ), error( %s )", hook, err.Error())
	}
	stdin.Close()

	err = cmd.Wait()
	return b.Bytes(), err
}
