// Package runtimetest provides a testify mock of runtime.ContainerRuntime.
package runtimetest

import (
	"context"
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/mock"

	"mongokit/pkg/runtime"
)

// MockContainerRuntime is a mock implementation of the ContainerRuntime interface.
type MockContainerRuntime struct {
	*mock.Mock
}

func NewMockContainerRuntime() *MockContainerRuntime {
	return &MockContainerRuntime{Mock: &mock.Mock{}}
}

func (m *MockContainerRuntime) PullImage(ctx context.Context, image string) error {
	args := m.Called(ctx, image)
	return args.Error(0)
}

func (m *MockContainerRuntime) CreateAndStart(ctx context.Context, opts runtime.CreateOptions) (runtime.Handle, error) {
	args := m.Called(ctx, opts)
	return args.Get(0).(runtime.Handle), args.Error(1)
}

func (m *MockContainerRuntime) Logs(ctx context.Context, h runtime.Handle, timestamps bool) (string, string, error) {
	args := m.Called(ctx, h, timestamps)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockContainerRuntime) Inspect(ctx context.Context, h runtime.Handle) (runtime.Inspection, error) {
	args := m.Called(ctx, h)
	return args.Get(0).(runtime.Inspection), args.Error(1)
}

func (m *MockContainerRuntime) Terminate(ctx context.Context, h runtime.Handle) error {
	args := m.Called(ctx, h)
	return args.Error(0)
}

// Listen opens a loopback listener standing in for a published container port.
// It returns the host and port and closes the listener when the test ends.
func Listen(t *testing.T) (host, port string) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %s", err)
	}
	t.Cleanup(func() { l.Close() })
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	addr := l.Addr().(*net.TCPAddr)
	return addr.IP.String(), strconv.Itoa(addr.Port)
}

// MongoLog returns n lines of mongod output, each carrying the "Waiting for connections" marker.
func MongoLog(n int) string {
	out := `{"t":{"$date":"2024-01-01T00:00:00.000+00:00"},"s":"I","c":"CONTROL","id":20698,"msg":"***** SERVER RESTARTED *****"}` + "\n"
	for range n {
		out += `{"t":{"$date":"2024-01-01T00:00:01.000+00:00"},"s":"I","c":"NETWORK","id":23016,"msg":"Waiting for connections","attr":{"port":27017,"ssl":"off"}}` + "\n"
	}
	return out
}
