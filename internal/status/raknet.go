// Package status probes peer game servers over UDP: a RakNet unconnected
// ping for the MOTD line and a GameSpy4 query for basic stats.
package status

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	idUnconnectedPing = 0x01
	idUnconnectedPong = 0x1c

	maxPacket = 1500
)

var offlineMagic = []byte{
	0x00, 0xff, 0xff, 0x00, 0xfe, 0xfe, 0xfe, 0xfe,
	0xfd, 0xfd, 0xfd, 0xfd, 0x12, 0x34, 0x56, 0x78,
}

var (
	ErrShortPacket = errors.New("short packet")
	ErrBadReply    = errors.New("unexpected reply")
)

// MOTD is the advertisement a server returns to an unconnected ping.
type MOTD struct {
	Edition    string
	Name       string
	Protocol   int
	Version    string
	Players    int
	MaxPlayers int
	ServerID   string
	SubName    string
	GameMode   string
	Latency    time.Duration
}

// Fields flattens m for storage as a structured query payload.
func (m MOTD) Fields() map[string]any {
	return map[string]any{
		"edition":     m.Edition,
		"motd":        m.Name,
		"protocol":    m.Protocol,
		"version":     m.Version,
		"players":     m.Players,
		"max-players": m.MaxPlayers,
		"server-id":   m.ServerID,
		"sub-motd":    m.SubName,
		"gamemode":    m.GameMode,
	}
}

// PingMOTD sends one unconnected ping to host:port and parses the pong.
func PingMOTD(ctx context.Context, host string, port int) (MOTD, error) {
	conn, err := dial(ctx, host, port)
	if err != nil {
		return MOTD{}, err
	}
	defer func() { _ = conn.Close() }()

	start := time.Now()
	if _, err := conn.Write(pingPacket(start, rand.Uint64())); err != nil {
		return MOTD{}, fmt.Errorf("send ping: %w", err)
	}

	buf := make([]byte, maxPacket)
	n, err := conn.Read(buf)
	if err != nil {
		return MOTD{}, fmt.Errorf("read pong: %w", err)
	}

	m, err := parsePong(buf[:n])
	if err != nil {
		return MOTD{}, err
	}
	m.Latency = time.Since(start)
	return m, nil
}

func pingPacket(now time.Time, guid uint64) []byte {
	b := make([]byte, 0, 1+8+len(offlineMagic)+8)
	b = append(b, idUnconnectedPing)
	b = binary.BigEndian.AppendUint64(b, uint64(now.UnixMilli()))
	b = append(b, offlineMagic...)
	b = binary.BigEndian.AppendUint64(b, guid)
	return b
}

// parsePong reads id, time, server guid, magic and a length-prefixed
// advertisement string.
func parsePong(b []byte) (MOTD, error) {
	const head = 1 + 8 + 8 + 16 + 2
	if len(b) < head {
		return MOTD{}, ErrShortPacket
	}
	if b[0] != idUnconnectedPong {
		return MOTD{}, fmt.Errorf("%w: packet id 0x%02x", ErrBadReply, b[0])
	}
	if !bytes.Equal(b[17:33], offlineMagic) {
		return MOTD{}, fmt.Errorf("%w: bad magic", ErrBadReply)
	}

	size := int(binary.BigEndian.Uint16(b[33:35]))
	if len(b) < head+size {
		return MOTD{}, ErrShortPacket
	}
	return parseAdvertisement(string(b[head : head+size]))
}

func parseAdvertisement(s string) (MOTD, error) {
	parts := strings.Split(s, ";")
	if len(parts) < 6 {
		return MOTD{}, fmt.Errorf("%w: advertisement %q", ErrBadReply, s)
	}
	part := func(i int) string {
		if i < len(parts) {
			return parts[i]
		}
		return ""
	}

	m := MOTD{
		Edition:  parts[0],
		Name:     parts[1],
		Version:  parts[3],
		ServerID: part(6),
		SubName:  part(7),
		GameMode: part(8),
	}
	m.Protocol, _ = strconv.Atoi(parts[2])
	m.Players, _ = strconv.Atoi(parts[4])
	m.MaxPlayers, _ = strconv.Atoi(parts[5])
	return m, nil
}

// dial connects a UDP socket whose deadline follows ctx.
func dial(ctx context.Context, host string, port int) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("dial %s:%d: %w", host, port, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	return conn, nil
}
