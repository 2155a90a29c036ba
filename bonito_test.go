package bonito_test

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"

	bonito "github.com/kayac/Bonito"
)

func BenchmarkBonito(b *testing.B) {
	prov, done := startProvider(b)
	defer done()

	ts := httptest.NewServer(prov.Handler())
	defer ts.Close()

	jsons := createJSONPostedData(500)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := do(ts.URL+"/push/fcm/v1", jsons); err != nil {
			b.Fatal(err)
		}
	}
}

func do(u string, jsons []byte) error {
	resp, err := http.Post(u, bonito.ApplicationJSON, bytes.NewReader(jsons))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := ioutil.ReadAll(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusServiceUnavailable:
		return nil
	default:
		return fmt.Errorf("unexpected response %d: %s", resp.StatusCode, body)
	}
}
