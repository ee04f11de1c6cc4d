package base

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/cellwire/rpc/common"
)

// --------------------------------------------------------------------------
// Test connectors (tcp on a random local port)
// --------------------------------------------------------------------------

type testServerConnector struct {
	addr chan string
}

func (c *testServerConnector) GetName() string        { return "test" }
func (c *testServerConnector) DefaultBufferSize() int { return 16 }

func (c *testServerConnector) Listen(config common.ServerConfig) (net.Listener, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	c.addr <- l.Addr().String()
	return l, nil
}

func (c *testServerConnector) UpgradeConnection(net.Conn, common.ServerConfig) error {
	return nil
}

type testClientConnector struct{}

func (c *testClientConnector) GetName() string { return "test" }

func (c *testClientConnector) Connect(endpoint string) (net.Conn, error) {
	return net.Dial("tcp", endpoint)
}

func (c *testClientConnector) UpgradeConnection(net.Conn, common.ClientConfig) error {
	return nil
}

// startEchoServer starts a server that answers with "<namespace>:<request>"
func startEchoServer(t *testing.T) string {
	return startServer(t, func(namespace uint64, req []byte) []byte {
		return []byte(fmt.Sprintf("%d:%s", namespace, req))
	})
}

// startServer starts a server with the given handler and returns its address
func startServer(t *testing.T, handler func(namespace uint64, req []byte) []byte) string {
	t.Helper()
	connector := &testServerConnector{addr: make(chan string, 1)}
	server := NewBaseServerTransport(connector)
	server.RegisterHandler(handler)

	done := make(chan error, 1)
	go func() {
		done <- server.Listen(common.ServerConfig{
			TimeoutSecond: 5,
			Transport:     common.ServerTransportConfig{WorkersPerConn: 4},
		})
	}()

	var addr string
	select {
	case addr = <-connector.addr:
	case err := <-done:
		t.Fatalf("server failed to start: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not start")
	}

	t.Cleanup(func() {
		_ = server.Close()
		if err := <-done; err != nil {
			t.Errorf("Listen returned error after Close: %v", err)
		}
	})
	return addr
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestFrameRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	payload := bytes.Repeat([]byte("x"), 100)
	go func() {
		_ = writeFrame(client, 3, 99, payload)
		_ = writeFrame(client, 4, 100, nil)
	}()

	// buffer smaller than the payload forces an allocation
	namespace, requestID, data, err := readFrame(server, make([]byte, 20))
	if err != nil {
		t.Fatalf("readFrame failed: %v", err)
	}
	if namespace != 3 || requestID != 99 || !bytes.Equal(data, payload) {
		t.Errorf("unexpected frame: namespace=%d requestID=%d len=%d", namespace, requestID, len(data))
	}

	namespace, requestID, data, err = readFrame(server, nil)
	if err != nil {
		t.Fatalf("readFrame failed: %v", err)
	}
	if namespace != 4 || requestID != 100 || len(data) != 0 {
		t.Errorf("unexpected empty frame: namespace=%d requestID=%d len=%d", namespace, requestID, len(data))
	}
}

func TestClientServer(t *testing.T) {
	addr := startEchoServer(t)

	client := NewBaseClientTransport(&testClientConnector{})
	err := client.Connect(common.ClientConfig{
		TimeoutSecond: 5,
		Transport: common.ClientTransportConfig{
			Endpoints:              []string{addr},
			RetryCount:             2,
			ConnectionsPerEndpoint: 2,
		},
	})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	// larger than the pooled server buffer
	large := bytes.Repeat([]byte("y"), 1000)
	resp, err := client.Send(7, large)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if want := "7:" + string(large); string(resp) != want {
		t.Errorf("unexpected response of length %d", len(resp))
	}

	// concurrent requests are correlated by request ID
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := fmt.Sprintf("req-%d", i)
			resp, err := client.Send(uint64(i), []byte(req))
			if err != nil {
				t.Errorf("Send %d failed: %v", i, err)
				return
			}
			if want := fmt.Sprintf("%d:%s", i, req); string(resp) != want {
				t.Errorf("expected %q, got %q", want, resp)
			}
		}(i)
	}
	wg.Wait()
}

func TestConnectWithoutEndpoints(t *testing.T) {
	client := NewBaseClientTransport(&testClientConnector{})
	if err := client.Connect(common.ClientConfig{}); err == nil {
		t.Errorf("expected error without endpoints")
	}
}

func TestFrameTooLarge(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		var header [frameHeaderSize]byte
		binary.BigEndian.PutUint32(header[16:20], MaxFrameSize+1)
		_, _ = client.Write(header[:])
	}()

	_, _, _, err := readFrame(server, nil)
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestNoResendAfterTimeout(t *testing.T) {
	var calls atomic.Int32
	addr := startServer(t, func(namespace uint64, req []byte) []byte {
		calls.Add(1)
		time.Sleep(1500 * time.Millisecond)
		return req
	})

	client := NewBaseClientTransport(&testClientConnector{})
	err := client.Connect(common.ClientConfig{
		TimeoutSecond: 1,
		Transport: common.ClientTransportConfig{
			Endpoints:  []string{addr},
			RetryCount: 3,
		},
	})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	if _, err := client.Send(1, []byte("batch")); !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("request was sent %d times, expected once", n)
	}
}

func TestTrimScheme(t *testing.T) {
	testCases := map[string]string{
		"tcp://localhost:8080": "localhost:8080",
		"localhost:8080":       "localhost:8080",
		"unix://tmp/x.sock":    "unix://tmp/x.sock", // other scheme is kept
	}
	for in, want := range testCases {
		if got := TrimScheme(in, "tcp"); got != want {
			t.Errorf("TrimScheme(%q): expected %q, got %q", in, want, got)
		}
	}
}
