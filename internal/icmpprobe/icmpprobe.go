// Package icmpprobe implements the ICMP Prober: it
// issues N echo requests per target and reports reachability, RTT, and
// loss. Built on golang.org/x/net/icmp's unprivileged "udp"
// datagram-oriented ICMP endpoint rather than a raw socket, so the
// prober runs without elevated host privileges.
package icmpprobe

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/errkind"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/logger"
)

// Result is one target's outcome across Count echoes.
type Result struct {
	Target    string
	Reachable bool
	AvgRTTMs  *float64
	LossRatio float64
}

// Config tunes a Prober (ICMP_COUNT, ICMP_TIMEOUT_MS, ICMP_INTERVAL_MS).
type Config struct {
	Count    int
	Timeout  time.Duration
	Interval time.Duration
}

var nextID int32

// Prober issues unprivileged ICMP echo probes.
type Prober struct {
	cfg Config
	log logger.Logger
}

// New constructs a Prober.
func New(cfg Config, log logger.Logger) *Prober {
	if cfg.Count <= 0 {
		cfg.Count = 3
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Second
	}

	if cfg.Interval <= 0 {
		cfg.Interval = 200 * time.Millisecond
	}

	return &Prober{cfg: cfg, log: log.Component("icmpprobe")}
}

// Probe sends cfg.Count echo requests to target and aggregates the result.
// It never returns an error for unreachable targets: that is a normal,
// contained outcome represented by Result.Reachable == false.
func (p *Prober) Probe(ctx context.Context, target string) (Result, error) {
	conn, err := icmp.ListenPacket("udp4", "0.0.0.0")
	if err != nil {
		return Result{}, errkind.New(errkind.Internal, fmt.Errorf("icmpprobe: listen: %w", err))
	}
	defer conn.Close()

	addr, err := net.ResolveIPAddr("ip4", target)
	if err != nil {
		return Result{}, errkind.New(errkind.Network, fmt.Errorf("icmpprobe: resolve %q: %w", target, err))
	}

	id := int(atomic.AddInt32(&nextID, 1) % 0xffff)

	var (
		successes int
		rttSum    time.Duration
	)

	for seq := 0; seq < p.cfg.Count; seq++ {
		select {
		case <-ctx.Done():
			return p.result(target, successes, seq, rttSum), ctx.Err()
		default:
		}

		rtt, ok := p.echoOnce(conn, addr, id, seq)
		if ok {
			successes++
			rttSum += rtt
		}

		if seq < p.cfg.Count-1 {
			time.Sleep(p.cfg.Interval)
		}
	}

	return p.result(target, successes, p.cfg.Count, rttSum), nil
}

func (p *Prober) result(target string, successes, attempted int, rttSum time.Duration) Result {
	if attempted == 0 {
		attempted = 1
	}

	loss := 1 - float64(successes)/float64(attempted)

	res := Result{Target: target, Reachable: successes > 0, LossRatio: loss}

	if successes > 0 {
		avg := float64(rttSum.Microseconds()) / float64(successes) / 1000.0
		res.AvgRTTMs = &avg
	}

	return res
}

func (p *Prober) echoOnce(conn *icmp.PacketConn, addr *net.IPAddr, id, seq int) (time.Duration, bool) {
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   id,
			Seq:  seq,
			Data: []byte("wardflux-ping"),
		},
	}

	wireBytes, err := msg.Marshal(nil)
	if err != nil {
		p.log.Debug().Err(err).Msg("marshal echo request failed")
		return 0, false
	}

	start := time.Now()

	if _, err := conn.WriteTo(wireBytes, &net.UDPAddr{IP: addr.IP}); err != nil {
		p.log.Debug().Str("target", addr.String()).Err(err).Msg("write echo request failed")
		return 0, false
	}

	if err := conn.SetReadDeadline(time.Now().Add(p.cfg.Timeout)); err != nil {
		return 0, false
	}

	reply := make([]byte, 1500)

	for {
		n, _, err := conn.ReadFrom(reply)
		if err != nil {
			return 0, false
		}

		rm, err := icmp.ParseMessage(1, reply[:n])
		if err != nil {
			continue
		}

		echoReply, ok := rm.Body.(*icmp.Echo)
		if !ok || rm.Type != ipv4.ICMPTypeEchoReply {
			continue
		}

		if echoReply.ID != id || echoReply.Seq != seq {
			continue
		}

		return time.Since(start), true
	}
}
