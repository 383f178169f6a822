package capture

import (
	"context"
	"errors"
	"fmt"
	"net"

	"golang.org/x/net/ipv4"

	"github.com/irctrakz/netlog/pkg/core"
	"github.com/irctrakz/netlog/pkg/logging"
)

// ErrProtocol is returned by Listen for protocols other than tcp and udp.
var ErrProtocol = errors.New("capture: protocol must be tcp or udp")

// Listen reads raw IPv4 packets of the given protocol ("tcp" or "udp") and
// passes each to proc until ctx ends. Opening the socket needs CAP_NET_RAW.
// Packets proc rejects are released here.
func Listen(ctx context.Context, protocol string, proc core.PacketProcessor) error {
	switch protocol {
	case "tcp", "udp":
	default:
		return fmt.Errorf("%w: %q", ErrProtocol, protocol)
	}

	pc, err := net.ListenPacket("ip4:"+protocol, "0.0.0.0")
	if err != nil {
		return fmt.Errorf("capture: listen %s: %w", protocol, err)
	}
	rc, err := ipv4.NewRawConn(pc)
	if err != nil {
		pc.Close()
		return fmt.Errorf("capture: raw conn: %w", err)
	}

	stop := context.AfterFunc(ctx, func() { rc.Close() })
	defer func() {
		if stop() {
			rc.Close()
		}
	}()

	logging.Infof("Capturing %s packets", protocol)
	for {
		buf := getBuf(bufMax)
		h, payload, _, err := rc.ReadFrom(buf)
		if err != nil {
			putBuf(buf)
			if ctx.Err() != nil {
				logging.Infof("Capture of %s packets stopped", protocol)
				return nil
			}
			return fmt.Errorf("capture: read: %w", err)
		}
		n := h.Len + len(payload)
		pkt := core.NewPooledPacket(buf[:n], putBuf)
		if err := proc.ProcessPacket(pkt); err != nil {
			core.ReleasePacket(pkt)
			logging.Limited("capture.drop").Warnf("Dropped captured packet: %v", err)
		}
	}
}
