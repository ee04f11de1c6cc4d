package local

import (
	"bytes"
	"testing"
	"time"

	"github.com/ValentinKolb/cellwire/rpc/common"
)

func TestLocalTransport(t *testing.T) {
	server := NewLocalServerTransport()
	server.RegisterHandler(func(namespace uint64, req []byte) []byte {
		req[0] = 'X' // must not be visible to the client
		return append([]byte{byte(namespace)}, req...)
	})

	serverConfig := common.ServerConfig{}
	serverConfig.Transport.Endpoint = "local-test"

	errCh := make(chan error, 1)
	go func() { errCh <- server.Listen(serverConfig) }()

	client := NewLocalClientTransport()
	clientConfig := common.ClientConfig{}
	clientConfig.Transport.Endpoints = []string{"local-test"}
	clientConfig.Transport.RetryCount = 50
	if err := client.Connect(clientConfig); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	req := []byte("hello")
	resp, err := client.Send(7, req)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !bytes.Equal(resp, []byte("\x07Xello")) {
		t.Errorf("unexpected response %q", resp)
	}
	if string(req) != "hello" {
		t.Errorf("request was modified by the server: %q", req)
	}

	// a second server on the same endpoint is rejected
	other := NewLocalServerTransport()
	other.RegisterHandler(func(uint64, []byte) []byte { return nil })
	if err := other.Listen(serverConfig); err == nil {
		t.Errorf("expected endpoint in use error")
	}

	if err := server.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Listen returned %v after Close", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Listen did not return after Close")
	}

	clientConfig.Transport.RetryCount = 1
	_ = client.Connect(clientConfig)
	if _, err := client.Send(1, req); err == nil {
		t.Errorf("expected error after server close")
	}
}
