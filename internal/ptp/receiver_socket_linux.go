//go:build linux

package ptp

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/libp2p/go-reuseport"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// SocketReceiver reads PTPv1 packets off a non-promiscuous multicast UDP
// socket with kernel software receive timestamps (SO_TIMESTAMPNS) attached,
// the way the teacher's UDP layer enables timestamping on its own sockets.
// It listens on both the PTP event port (319, Sync) and general port (320,
// FollowUp) and merges both into one stream.
type SocketReceiver struct {
	log *zap.Logger

	event   *net.UDPConn
	general *net.UDPConn

	out    chan result
	closed chan struct{}
	once   sync.Once
}

type result struct {
	pkt Packet
	err error
}

func NewSocketReceiver(log *zap.Logger, iface string) (*SocketReceiver, error) {
	r := &SocketReceiver{log: log, out: make(chan result, 64), closed: make(chan struct{})}

	ev, err := listenMulticast(iface, EventPort)
	if err != nil {
		return nil, fmt.Errorf("ptp: listen event port: %w", err)
	}
	gen, err := listenMulticast(iface, GeneralPort)
	if err != nil {
		ev.Close()
		return nil, fmt.Errorf("ptp: listen general port: %w", err)
	}
	r.event, r.general = ev, gen

	go r.readLoop(ev)
	go r.readLoop(gen)
	return r, nil
}

func listenMulticast(iface string, port int) (*net.UDPConn, error) {
	addr := fmt.Sprintf("%s:%d", MulticastGroup, port)
	pc, err := reuseport.ListenPacket("udp4", addr)
	if err != nil {
		return nil, err
	}
	conn := pc.(*net.UDPConn)

	sc, err := conn.SyscallConn()
	if err != nil {
		conn.Close()
		return nil, err
	}

	var sockErr error
	err = sc.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_TIMESTAMPNS, 1); err != nil {
			sockErr = fmt.Errorf("SO_TIMESTAMPNS: %w", err)
			return
		}
		mreq, err := multicastMreq(iface)
		if err != nil {
			sockErr = err
			return
		}
		if err := unix.SetsockoptIPMreq(int(fd), unix.IPPROTO_IP, unix.IP_ADD_MEMBERSHIP, mreq); err != nil {
			sockErr = fmt.Errorf("IP_ADD_MEMBERSHIP: %w", err)
			return
		}
	})
	if err != nil {
		conn.Close()
		return nil, err
	}
	if sockErr != nil {
		conn.Close()
		return nil, sockErr
	}
	return conn, nil
}

func multicastMreq(iface string) (*unix.IPMreq, error) {
	mreq := &unix.IPMreq{}
	copy(mreq.Multiaddr[:], net.ParseIP(MulticastGroup).To4())
	if iface == "" {
		return mreq, nil
	}
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("interface %s: %w", iface, err)
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return nil, err
	}
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip4 := ipn.IP.To4()
		if ip4 == nil {
			continue
		}
		copy(mreq.Interface[:], ip4)
		return mreq, nil
	}
	return nil, fmt.Errorf("interface %s has no IPv4 address", iface)
}

func (r *SocketReceiver) readLoop(conn *net.UDPConn) {
	buf := make([]byte, 1500)
	oob := make([]byte, 128)
	for {
		n, oobn, _, _, err := conn.ReadMsgUDP(buf, oob)
		if err != nil {
			select {
			case <-r.closed:
				return
			default:
			}
			r.out <- result{err: fmt.Errorf("ptp: read: %w", err)}
			return
		}
		rxTime := time.Now().UTC()
		if ts, ok := parseTimestampNS(oob[:oobn]); ok {
			rxTime = ts
		}
		pkt, err := decodePacket(buf[:n], rxTime)
		if err != nil {
			r.log.Debug("dropping malformed PTP packet", zap.Error(err))
			continue
		}
		select {
		case r.out <- result{pkt: pkt}:
		case <-r.closed:
			return
		}
	}
}

func parseTimestampNS(oob []byte) (time.Time, bool) {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return time.Time{}, false
	}
	for _, m := range msgs {
		if m.Header.Level != unix.SOL_SOCKET || m.Header.Type != unix.SO_TIMESTAMPNS {
			continue
		}
		if len(m.Data) < 16 {
			continue
		}
		sec := int64(binary.NativeEndian.Uint64(m.Data[0:8]))
		nsec := int64(binary.NativeEndian.Uint64(m.Data[8:16]))
		return time.Unix(sec, nsec).UTC(), true
	}
	return time.Time{}, false
}

func (r *SocketReceiver) Receive() (Packet, error) {
	select {
	case res, ok := <-r.out:
		if !ok {
			return Packet{}, ErrClosed
		}
		return res.pkt, res.err
	case <-r.closed:
		return Packet{}, ErrClosed
	}
}

func (r *SocketReceiver) Close() error {
	r.once.Do(func() {
		close(r.closed)
		r.event.Close()
		r.general.Close()
	})
	return nil
}
