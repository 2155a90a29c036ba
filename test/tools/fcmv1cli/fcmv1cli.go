package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"os"
	"strings"

	"firebase.google.com/go/messaging"
	"github.com/kayac/Bonito/fcmv1"
)

func main() {

	var (
		port    int
		host    string
		count   int
		title   string
		message string
		data    string
		token   string
		topic   string
	)

	flag.IntVar(&count, "count", 1, "send count")
	flag.IntVar(&port, "port", 8003, "bonito port")
	flag.StringVar(&host, "host", "localhost", "bonito host")
	flag.StringVar(&title, "title", "test", "push notification title")
	flag.StringVar(&message, "message", "test notification", "push notification message")
	flag.StringVar(&data, "data", "", "data (key1=value1,key2=value2...)")
	flag.StringVar(&token, "token", "", "fcm registration token")
	flag.StringVar(&topic, "topic", "", "fcm topic")

	flag.Parse()

	if token == "" && topic == "" {
		log.Println("token or topic is required")
		os.Exit(1)
	}

	log.Printf("host: %s, port: %d, send count: %d", host, port, count)

	kvs := map[string]string{}
	if data != "" {
		for _, opt := range strings.Split(data, ",") {
			kv := strings.SplitN(opt, "=", 2)
			if len(kv) != 2 {
				log.Printf("invalid data: %s", opt)
				os.Exit(1)
			}
			kvs[kv[0]] = kv[1]
		}
	}

	payloads := make([]fcmv1.Payload, count)
	for i := 0; i < count; i++ {
		payloads[i] = fcmv1.Payload{
			Message: messaging.Message{
				Notification: &messaging.Notification{
					Title: title,
					Body:  message,
				},
				Data:  kvs,
				Token: token,
				Topic: topic,
			},
		}
	}

	b := &bytes.Buffer{}
	if err := json.NewEncoder(b).Encode(payloads); err != nil {
		log.Println(err)
		os.Exit(1)
	}
	log.Println("post data:", b.String())

	endpoint := fmt.Sprintf("http://%s:%d/push/fcm/v1", host, port)
	req, err := http.NewRequest(http.MethodPost, endpoint, b)
	if err != nil {
		log.Fatal(err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Printf("err: %s", err)
		return
	}
	defer resp.Body.Close()

	out, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		log.Printf("err: %s", err)
		return
	}
	log.Println("status:", resp.StatusCode, "resp:", string(out))
}
