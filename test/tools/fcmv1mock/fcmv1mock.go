package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/kayac/Bonito/mock"
)

func main() {
	var (
		port      int
		projectID string
		verbose   bool
		latency   time.Duration
	)

	flag.IntVar(&port, "port", 8888, "fcmv1 mock server port")
	flag.StringVar(&projectID, "project-id", "test", "fcmv1 mock project id")
	flag.BoolVar(&verbose, "verbose", false, "verbose flag")
	flag.DurationVar(&latency, "latency", 200*time.Millisecond, "average response time of the mock server")
	flag.Parse()

	mux := mock.FCMv1LatencyMockServer(projectID, verbose, latency)
	log.Println("start fcmv1mock server port:", port, "project_id:", projectID)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
		log.Fatal(err)
	}
}
