package http

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/cellwire/rpc/common"
)

// freeAddr returns a free local tcp address
func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

func TestHttpTransport(t *testing.T) {
	addr := freeAddr(t)

	server := NewHttpServerTransport()
	server.RegisterHandler(func(namespace uint64, req []byte) []byte {
		return []byte(fmt.Sprintf("%d:%s", namespace, req))
	})
	server.(*httpServerTransport).RegisterMetrics(func(w io.Writer) {
		_, _ = io.WriteString(w, "cellwire_test_total 1\n")
	})

	done := make(chan error, 1)
	go func() {
		done <- server.Listen(common.ServerConfig{
			TimeoutSecond: 5,
			Transport:     common.ServerTransportConfig{Endpoint: addr},
		})
	}()
	defer func() {
		_ = server.Close()
		if err := <-done; err != nil {
			t.Errorf("Listen returned error after Close: %v", err)
		}
	}()

	// wait until the server accepts requests
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/health")
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not start: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	client := NewHttpClientTransport()
	err := client.Connect(common.ClientConfig{
		TimeoutSecond: 5,
		Transport:     common.ClientTransportConfig{Endpoints: []string{"http://" + addr}},
	})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	resp, err := client.Send(12, []byte("payload"))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if string(resp) != "12:payload" {
		t.Errorf("unexpected response %q", resp)
	}

	// metrics are served by the transport
	metrics, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	body, _ := io.ReadAll(metrics.Body)
	metrics.Body.Close()
	if !strings.Contains(string(body), "cellwire_test_total 1") {
		t.Errorf("unexpected metrics body %q", body)
	}

	// invalid namespaces are rejected
	bad, err := http.Post("http://"+addr+"/not-a-number", "application/octet-stream", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", bad.StatusCode)
	}
}
