package sdr

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
)

var dongleMagic = [4]byte{'R', 'T', 'L', '0'}

// rtl_tcp command codes, as defined in rtl_tcp.c.
const (
	cmdCenterFreq    = 0x01
	cmdSampleRate    = 0x02
	cmdTunerGainMode = 0x03
	cmdTunerGain     = 0x04
	cmdAGCMode       = 0x08
)

var tunerNames = map[uint32]string{
	1: "E4000",
	2: "FC0012",
	3: "FC0013",
	4: "FC2580",
	5: "R820T",
	6: "R828D",
}

// RTLTCPConfig configures the connection-time state of an rtl_tcp
// source.
type RTLTCPConfig struct {
	// SampleRate in Hz.
	SampleRate float64

	// Gain is either "auto" (tuner AGC) or a gain in dB, e.g. "28.0".
	Gain string
}

// RTLTCPSource drives an rtl_tcp server as a SampleSource. The protocol
// streams interleaved unsigned 8-bit I/Q pairs; Read converts them to
// unit-range complex64.
type RTLTCPSource struct {
	conn *net.TCPConn
	info dongleInfo

	iqBuf []byte

	closeOnce sync.Once
	closeErr  error
}

type dongleInfo struct {
	Magic     [4]byte
	Tuner     uint32
	GainCount uint32
}

type command struct {
	Command   uint8
	Parameter uint32
}

// DialRTLTCP connects to an rtl_tcp server, validates the dongle
// handshake and applies sample rate and gain. The context bounds the
// dial only; established connections have no read deadline.
func DialRTLTCP(ctx context.Context, addr string, cfg RTLTCPConfig) (*RTLTCPSource, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to rtl_tcp at %s: %w", addr, err)
	}

	s := &RTLTCPSource{conn: conn.(*net.TCPConn)}
	if err = binary.Read(s.conn, binary.BigEndian, &s.info); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("reading dongle info: %w", err)
	}
	if s.info.Magic != dongleMagic {
		_ = conn.Close()
		return nil, fmt.Errorf("bad rtl_tcp magic: %q", s.info.Magic)
	}

	if err = s.send(cmdSampleRate, uint32(cfg.SampleRate)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("setting sample rate: %w", err)
	}
	if err = s.applyGain(cfg.Gain); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return s, nil
}

func (s *RTLTCPSource) send(cmd uint8, v uint32) error {
	return binary.Write(s.conn, binary.BigEndian, command{cmd, v})
}

func (s *RTLTCPSource) applyGain(gain string) error {
	if gain == "" || gain == "auto" {
		if err := s.send(cmdTunerGainMode, 0); err != nil {
			return fmt.Errorf("enabling tuner AGC: %w", err)
		}
		return s.send(cmdAGCMode, 1)
	}

	db, err := strconv.ParseFloat(gain, 64)
	if err != nil {
		return fmt.Errorf("invalid gain %q: %w", gain, err)
	}
	if err = s.send(cmdTunerGainMode, 1); err != nil {
		return fmt.Errorf("enabling manual gain: %w", err)
	}
	// rtl_tcp takes gain in tenths of a dB.
	return s.send(cmdTunerGain, uint32(db*10))
}

// Tune retunes the dongle to centerHz.
func (s *RTLTCPSource) Tune(centerHz float64) error {
	if err := s.send(cmdCenterFreq, uint32(centerHz)); err != nil {
		return fmt.Errorf("tuning to %.0f Hz: %w", centerHz, err)
	}
	return nil
}

// Read blocks until exactly n complex samples have arrived.
func (s *RTLTCPSource) Read(n int) ([]complex64, error) {
	need := 2 * n
	if cap(s.iqBuf) < need {
		s.iqBuf = make([]byte, need)
	}
	buf := s.iqBuf[:need]

	if _, err := io.ReadFull(s.conn, buf); err != nil {
		return nil, fmt.Errorf("reading %d samples: %w", n, err)
	}

	samples := make([]complex64, n)
	for i := range samples {
		samples[i] = complex(
			(float32(buf[2*i])-127)/128.0,
			(float32(buf[2*i+1])-127)/128.0)
	}
	return samples, nil
}

// Device returns a label of the form "rtl-tcp/R820T".
func (s *RTLTCPSource) Device() string {
	name, ok := tunerNames[s.info.Tuner]
	if !ok {
		name = fmt.Sprintf("tuner-%d", s.info.Tuner)
	}
	return "rtl-tcp/" + name
}

// Close shuts the connection down. Safe to call more than once.
func (s *RTLTCPSource) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
