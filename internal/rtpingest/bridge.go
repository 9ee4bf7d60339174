package rtpingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/zaf/g711"

	"github.com/sebas/callhub/internal/call"
	"github.com/sebas/callhub/internal/ingest"
)

// payloadTypePCMU is the static RTP payload type for G.711 µ-law
const payloadTypePCMU = 0

// Bridge ingests phone-side audio arriving from the gateway as RTP/PCMU
// datagrams. Each packet's payload is decoded to linear PCM, resampled to
// the artifact rate, and fed into the ingest pipeline as a caller frame.
//
// A stream is only accepted after its SSRC has been bound to a live call
// with Register; packets from unknown sources are dropped and counted.
type Bridge struct {
	pipeline *ingest.Pipeline

	mu     sync.RWMutex
	bySSRC map[uint32]string
	conn   *net.UDPConn

	packets atomic.Int64
	bytes   atomic.Int64
	dropped atomic.Int64
}

// NewBridge creates an RTP bridge feeding pipeline
func NewBridge(pipeline *ingest.Pipeline) *Bridge {
	return &Bridge{
		pipeline: pipeline,
		bySSRC:   make(map[uint32]string),
	}
}

// Register binds an RTP source to a call. Frames from ssrc are ingested as
// caller audio for callID until Unregister.
func (b *Bridge) Register(ssrc uint32, callID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bySSRC[ssrc] = callID
	slog.Info("[RTP] Source registered", "ssrc", ssrc, "call_id", callID)
}

// Unregister removes an RTP source binding
func (b *Bridge) Unregister(ssrc uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.bySSRC, ssrc)
}

// Run binds addr and reads packets until ctx is canceled
func (b *Bridge) Run(ctx context.Context, addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to resolve RTP address: %w", err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("failed to bind RTP socket: %w", err)
	}

	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	slog.Info("[RTP] Audio bridge listening", "addr", conn.LocalAddr().String())

	buf := make([]byte, 1500) // MTU-sized buffer
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			slog.Debug("[RTP] Read error", "error", err)
			continue
		}
		b.handlePacket(buf[:n])
	}
}

// LocalAddr returns the bound UDP address, or empty before Run
func (b *Bridge) LocalAddr() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.conn == nil {
		return ""
	}
	return b.conn.LocalAddr().String()
}

// Stats reports packet counters for observability
func (b *Bridge) Stats() (packets, bytes, dropped int64) {
	return b.packets.Load(), b.bytes.Load(), b.dropped.Load()
}

func (b *Bridge) handlePacket(data []byte) {
	pkt := &rtp.Packet{}
	if err := pkt.Unmarshal(data); err != nil {
		b.dropped.Add(1)
		slog.Debug("[RTP] Dropping unparsable packet", "error", err)
		return
	}
	if pkt.PayloadType != payloadTypePCMU || len(pkt.Payload) == 0 {
		b.dropped.Add(1)
		return
	}

	b.mu.RLock()
	callID, ok := b.bySSRC[pkt.SSRC]
	b.mu.RUnlock()
	if !ok {
		b.dropped.Add(1)
		return
	}

	pcm := Resample8kToArtifact(g711.DecodeUlaw(pkt.Payload))
	if _, err := b.pipeline.AcceptRaw(callID, call.SideCaller, pcm); err != nil {
		// Session ended or recording stopped; the source will be
		// unregistered shortly.
		b.dropped.Add(1)
		slog.Debug("[RTP] Frame rejected", "call_id", callID, "error", err)
		return
	}

	b.packets.Add(1)
	b.bytes.Add(int64(len(pkt.Payload)))
}
