// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package socket

import (
	"time"

	"github.com/nomadarchitect/tinynet/pkg/tcpip"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/stack"
)

// SetTimeout bounds every subsequent blocking operation on s.
// tcpip.InfiniteTimeout blocks without bound.
func (s *Socket) SetTimeout(d time.Duration) *tcpip.Error {
	s.table.net.Lock()
	defer s.table.net.Unlock()
	if s.typ == TypeUnused {
		return tcpip.ErrInvalidEndpointState
	}
	s.timeout = d
	return nil
}

// SetTTL sets the hop limit used for unicast sends.
func (s *Socket) SetTTL(ttl uint8) *tcpip.Error {
	s.table.net.Lock()
	defer s.table.net.Unlock()
	if s.typ == TypeUnused {
		return tcpip.ErrInvalidEndpointState
	}
	s.ttl = ttl
	return nil
}

// SetMulticastTTL sets the hop limit used for multicast sends.
func (s *Socket) SetMulticastTTL(ttl uint8) *tcpip.Error {
	s.table.net.Lock()
	defer s.table.net.Unlock()
	if s.typ == TypeUnused {
		return tcpip.ErrInvalidEndpointState
	}
	s.multicastTTL = ttl
	return nil
}

// SetDSCP sets the differentiated-services codepoint (0..63), stored
// shifted into the traffic-class octet.
func (s *Socket) SetDSCP(dscp uint8) *tcpip.Error {
	if dscp > 63 {
		return tcpip.ErrInvalidParameter
	}
	s.table.net.Lock()
	defer s.table.net.Unlock()
	if s.typ == TypeUnused {
		return tcpip.ErrInvalidEndpointState
	}
	s.tos = dscp << 2
	return nil
}

// SetVlanPCP sets the 802.1Q priority code point (0..7).
func (s *Socket) SetVlanPCP(pcp uint8) *tcpip.Error {
	if pcp > 7 {
		return tcpip.ErrInvalidParameter
	}
	s.table.net.Lock()
	defer s.table.net.Unlock()
	if s.typ == TypeUnused {
		return tcpip.ErrInvalidEndpointState
	}
	s.vlanPCP = int8(pcp)
	return nil
}

// SetVlanDEI sets the 802.1Q drop-eligible indicator.
func (s *Socket) SetVlanDEI(dei bool) *tcpip.Error {
	s.table.net.Lock()
	defer s.table.net.Unlock()
	if s.typ == TypeUnused {
		return tcpip.ErrInvalidEndpointState
	}
	s.vlanDEI = boolToFlag(dei)
	return nil
}

// SetVmanPCP sets the 802.1ad service priority code point (0..7).
func (s *Socket) SetVmanPCP(pcp uint8) *tcpip.Error {
	if pcp > 7 {
		return tcpip.ErrInvalidParameter
	}
	s.table.net.Lock()
	defer s.table.net.Unlock()
	if s.typ == TypeUnused {
		return tcpip.ErrInvalidEndpointState
	}
	s.vmanPCP = int8(pcp)
	return nil
}

// SetVmanDEI sets the 802.1ad drop-eligible indicator.
func (s *Socket) SetVmanDEI(dei bool) *tcpip.Error {
	s.table.net.Lock()
	defer s.table.net.Unlock()
	if s.typ == TypeUnused {
		return tcpip.ErrInvalidEndpointState
	}
	s.vmanDEI = boolToFlag(dei)
	return nil
}

func boolToFlag(b bool) int8 {
	if b {
		return 1
	}
	return 0
}

// EnableBroadcast permits or forbids sends to broadcast addresses.
func (s *Socket) EnableBroadcast(enabled bool) *tcpip.Error {
	s.table.net.Lock()
	defer s.table.net.Unlock()
	if s.typ == TypeUnused {
		return tcpip.ErrInvalidEndpointState
	}
	if enabled {
		s.options |= OptionBroadcast
	} else {
		s.options &^= OptionBroadcast
	}
	return nil
}

// BroadcastEnabled reports the broadcast option.
func (s *Socket) BroadcastEnabled() bool {
	s.table.net.Lock()
	defer s.table.net.Unlock()
	return s.options&OptionBroadcast != 0
}

// EnableKeepAlive turns connection keep-alive probing on or off.
func (s *Socket) EnableKeepAlive(enabled bool) *tcpip.Error {
	s.table.net.Lock()
	defer s.table.net.Unlock()
	if s.typ != TypeStream {
		return tcpip.ErrInvalidEndpointState
	}
	s.keepAliveEnabled = enabled
	return nil
}

// SetKeepAliveParams configures keep-alive probing; every parameter must
// be positive.
func (s *Socket) SetKeepAliveParams(idle, interval time.Duration, maxProbes int) *tcpip.Error {
	if idle <= 0 || interval <= 0 || maxProbes <= 0 {
		return tcpip.ErrInvalidParameter
	}
	s.table.net.Lock()
	defer s.table.net.Unlock()
	if s.typ != TypeStream {
		return tcpip.ErrInvalidEndpointState
	}
	s.keepAliveIdle = idle
	s.keepAliveInterval = interval
	s.keepAliveProbes = maxProbes
	return nil
}

// SetMaxSegmentSize sets the advertised MSS, clamped to the supported
// range.
func (s *Socket) SetMaxSegmentSize(mss uint16) *tcpip.Error {
	s.table.net.Lock()
	defer s.table.net.Unlock()
	if s.typ != TypeStream {
		return tcpip.ErrInvalidEndpointState
	}
	if mss < MinMSS {
		mss = MinMSS
	}
	if mss > MaxMSS {
		mss = MaxMSS
	}
	s.mss = mss
	return nil
}

// SetTxBufferSize resizes the transmit buffer. Only permitted before the
// connection exists.
func (s *Socket) SetTxBufferSize(n int) *tcpip.Error {
	if n < 1 || n > MaxBufferSize {
		return tcpip.ErrInvalidParameter
	}
	s.table.net.Lock()
	defer s.table.net.Unlock()
	if s.typ != TypeStream {
		return tcpip.ErrInvalidEndpointState
	}
	if s.table.stream != nil && s.table.stream.State(s) != StreamClosed {
		return tcpip.ErrInvalidEndpointState
	}
	s.txBufferSize = n
	return nil
}

// SetRxBufferSize resizes the receive buffer. Only permitted before the
// connection exists.
func (s *Socket) SetRxBufferSize(n int) *tcpip.Error {
	if n < 1 || n > MaxBufferSize {
		return tcpip.ErrInvalidParameter
	}
	s.table.net.Lock()
	defer s.table.net.Unlock()
	if s.typ != TypeStream {
		return tcpip.ErrInvalidEndpointState
	}
	if s.table.stream != nil && s.table.stream.State(s) != StreamClosed {
		return tcpip.ErrInvalidEndpointState
	}
	s.rxBufferSize = n
	return nil
}

// SetInterface pins the endpoint to an interface; nil restores the
// default selection.
func (s *Socket) SetInterface(ifc *stack.Interface) *tcpip.Error {
	s.table.net.Lock()
	defer s.table.net.Unlock()
	if s.typ == TypeUnused {
		return tcpip.ErrInvalidEndpointState
	}
	s.ifc = ifc
	return nil
}

// Interface returns the endpoint's pinned interface, falling back to the
// context's default.
func (s *Socket) Interface() *stack.Interface {
	s.table.net.Lock()
	ifc := s.ifc
	s.table.net.Unlock()
	if ifc != nil {
		return ifc
	}
	return s.table.net.DefaultInterface()
}

// Timeout returns the configured blocking bound.
func (s *Socket) Timeout() time.Duration {
	s.table.net.Lock()
	defer s.table.net.Unlock()
	return s.timeout
}

// TTL returns the unicast hop limit.
func (s *Socket) TTL() uint8 {
	s.table.net.Lock()
	defer s.table.net.Unlock()
	return s.ttl
}

// MulticastTTL returns the multicast hop limit.
func (s *Socket) MulticastTTL() uint8 {
	s.table.net.Lock()
	defer s.table.net.Unlock()
	return s.multicastTTL
}

// TOS returns the traffic-class octet derived from the configured DSCP.
func (s *Socket) TOS() uint8 {
	s.table.net.Lock()
	defer s.table.net.Unlock()
	return s.tos
}

// MaxSegmentSize returns the clamped MSS.
func (s *Socket) MaxSegmentSize() uint16 {
	s.table.net.Lock()
	defer s.table.net.Unlock()
	return s.mss
}

// KeepAliveParams returns the keep-alive configuration and whether
// probing is enabled.
func (s *Socket) KeepAliveParams() (idle, interval time.Duration, maxProbes int, enabled bool) {
	s.table.net.Lock()
	defer s.table.net.Unlock()
	return s.keepAliveIdle, s.keepAliveInterval, s.keepAliveProbes, s.keepAliveEnabled
}
