// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package socket_test

import (
	"testing"

	"github.com/nomadarchitect/tinynet/pkg/tcpip"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/transport/socket"
	"github.com/nomadarchitect/tinynet/pkg/waiter"
)

// fakeStream is a stream protocol double recording delegation and
// simulating connection state.
type fakeStream struct {
	state     socket.StreamState
	readiness waiter.EventMask
	calls     []string
	sent      []byte
}

func (f *fakeStream) Connect(s *socket.Socket, addr tcpip.Address, port uint16) *tcpip.Error {
	f.calls = append(f.calls, "connect")
	f.state = socket.StreamEstablished
	return nil
}

func (f *fakeStream) Listen(s *socket.Socket, backlog int) *tcpip.Error {
	f.calls = append(f.calls, "listen")
	f.state = socket.StreamListen
	return nil
}

func (f *fakeStream) Accept(s *socket.Socket) (*socket.Socket, tcpip.Address, uint16, *tcpip.Error) {
	f.calls = append(f.calls, "accept")
	client, err := s.Table().Open(socket.TypeStream, 6)
	if err != nil {
		return nil, "", 0, err
	}
	return client, peerIP, 40000, nil
}

func (f *fakeStream) Send(s *socket.Socket, data []byte, flags socket.Flags) (int, *tcpip.Error) {
	f.calls = append(f.calls, "send")
	f.sent = append(f.sent, data...)
	return len(data), nil
}

func (f *fakeStream) Receive(s *socket.Socket, b []byte, flags socket.Flags) (int, *tcpip.Error) {
	f.calls = append(f.calls, "receive")
	return copy(b, "stream data"), nil
}

func (f *fakeStream) Shutdown(s *socket.Socket, how socket.ShutdownHow) *tcpip.Error {
	f.calls = append(f.calls, "shutdown")
	return nil
}

func (f *fakeStream) Abort(s *socket.Socket) {
	f.calls = append(f.calls, "abort")
	f.state = socket.StreamClosed
}

func (f *fakeStream) State(s *socket.Socket) socket.StreamState { return f.state }

func (f *fakeStream) Readiness(s *socket.Socket) waiter.EventMask { return f.readiness }

func TestStreamDelegation(t *testing.T) {
	e := newEnv(t)
	fake := &fakeStream{}
	e.table.SetStreamProtocol(fake)

	s, err := e.table.Open(socket.TypeStream, 6)
	if err != nil {
		t.Fatalf("Open: %s", err)
	}

	if err := s.Connect(peerIP, 80); err != nil {
		t.Fatalf("Connect: %s", err)
	}
	if n, err := s.Send([]byte("abc"), 0); err != nil || n != 3 {
		t.Fatalf("Send = %d, %v", n, err)
	}
	buf := make([]byte, 32)
	if n, err := s.Receive(buf, 0); err != nil || string(buf[:n]) != "stream data" {
		t.Fatalf("Receive = %q, %v", buf[:n], err)
	}

	// The source of received stream data is the connected remote.
	_, src, dst, err := s.ReceiveEx(buf, 0)
	if err != nil {
		t.Fatalf("ReceiveEx: %s", err)
	}
	if src.Addr != peerIP || src.Port != 80 {
		t.Errorf("source = %s:%d, want %s:80", src.Addr, src.Port, peerIP)
	}
	if dst.Addr != "" && dst.Port != 0 {
		t.Errorf("destination = %s:%d, want unbound local", dst.Addr, dst.Port)
	}

	if err := s.Shutdown(socket.ShutdownSend); err != nil {
		t.Fatalf("Shutdown: %s", err)
	}
	s.Close()

	want := []string{"connect", "send", "receive", "receive", "shutdown", "abort"}
	if len(fake.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", fake.calls, want)
	}
	for i := range want {
		if fake.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", fake.calls, want)
		}
	}
}

func TestStreamListenAccept(t *testing.T) {
	e := newEnv(t)
	fake := &fakeStream{}
	e.table.SetStreamProtocol(fake)

	s, err := e.table.Open(socket.TypeStream, 6)
	if err != nil {
		t.Fatalf("Open: %s", err)
	}
	if err := s.Bind(ourIP, 80); err != nil {
		t.Fatalf("Bind: %s", err)
	}
	if err := s.Listen(4); err != nil {
		t.Fatalf("Listen: %s", err)
	}

	client, addr, port, err := s.Accept()
	if err != nil {
		t.Fatalf("Accept: %s", err)
	}
	if client == nil || client == s {
		t.Error("Accept did not return a distinct endpoint")
	}
	if addr != peerIP || port != 40000 {
		t.Errorf("peer = %s:%d, want %s:40000", addr, port, peerIP)
	}

	// Buffer resizing is rejected once the protocol holds state.
	if err := s.SetTxBufferSize(4096); err != tcpip.ErrInvalidEndpointState {
		t.Errorf("SetTxBufferSize while listening = %v, want %s", err, tcpip.ErrInvalidEndpointState)
	}
}

func TestStreamOpsRequireEngine(t *testing.T) {
	e := newEnv(t)
	s, err := e.table.Open(socket.TypeStream, 6)
	if err != nil {
		t.Fatalf("Open: %s", err)
	}
	if err := s.Listen(1); err != tcpip.ErrNotSupported {
		t.Errorf("Listen = %v, want %s", err, tcpip.ErrNotSupported)
	}
	if _, _, _, err := s.Accept(); err != tcpip.ErrNotSupported {
		t.Errorf("Accept = %v, want %s", err, tcpip.ErrNotSupported)
	}
	if err := s.Connect(peerIP, 80); err != tcpip.ErrNotSupported {
		t.Errorf("Connect = %v, want %s", err, tcpip.ErrNotSupported)
	}

	dgram, _ := e.table.Open(socket.TypeDgram, 17)
	if err := dgram.Listen(1); err != tcpip.ErrInvalidEndpointState {
		t.Errorf("Listen on dgram = %v, want %s", err, tcpip.ErrInvalidEndpointState)
	}
	if _, _, _, err := dgram.Accept(); err != tcpip.ErrInvalidEndpointState {
		t.Errorf("Accept on dgram = %v, want %s", err, tcpip.ErrInvalidEndpointState)
	}
}

func TestStreamReadinessDrivesPoll(t *testing.T) {
	e := newEnv(t)
	fake := &fakeStream{readiness: 0}
	e.table.SetStreamProtocol(fake)

	s, err := e.table.Open(socket.TypeStream, 6)
	if err != nil {
		t.Fatalf("Open: %s", err)
	}

	descs := []socket.PollDesc{{Socket: s, Mask: waiter.EventIn}}
	if err := socket.Poll(descs, nil, 0); err != tcpip.ErrTimeout {
		t.Fatalf("Poll(idle stream) = %v, want %s", err, tcpip.ErrTimeout)
	}

	fake.readiness = waiter.EventIn
	s.ReadinessChanged()
	if err := socket.Poll(descs, nil, 0); err != nil {
		t.Fatalf("Poll(ready stream) = %v, want nil", err)
	}
	if descs[0].Ready&waiter.EventIn == 0 {
		t.Error("stream readiness not reflected in poll flags")
	}
}
