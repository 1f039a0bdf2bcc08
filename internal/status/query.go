package status

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/MrSnakeDoc/serverlist/internal/domain"
)

const (
	queryHandshake = 0x09
	queryStat      = 0x00
)

var queryMagic = []byte{0xfe, 0xfd}

// Basic is the short GameSpy4 stat reply.
type Basic struct {
	MOTD       string
	GameType   string
	Map        string
	Players    int
	MaxPlayers int
	HostPort   int
	HostIP     string
}

// Fields flattens b for storage as a structured query payload.
func (b Basic) Fields() map[string]any {
	return map[string]any{
		"motd":               b.MOTD,
		"gametype":           b.GameType,
		"map":                b.Map,
		"players":            b.Players,
		"max-players":        b.MaxPlayers,
		domain.FieldHostPort: b.HostPort,
		domain.FieldHostIP:   b.HostIP,
	}
}

// QueryBasic performs the handshake and a basic stat request.
func QueryBasic(ctx context.Context, host string, port int) (Basic, error) {
	conn, err := dial(ctx, host, port)
	if err != nil {
		return Basic{}, err
	}
	defer func() { _ = conn.Close() }()

	session := rand.Uint32() & 0x0f0f0f0f
	buf := make([]byte, maxPacket)

	if _, err := conn.Write(queryPacket(queryHandshake, session, nil)); err != nil {
		return Basic{}, fmt.Errorf("send handshake: %w", err)
	}
	n, err := conn.Read(buf)
	if err != nil {
		return Basic{}, fmt.Errorf("read handshake: %w", err)
	}
	token, err := parseChallenge(buf[:n], session)
	if err != nil {
		return Basic{}, err
	}

	if _, err := conn.Write(queryPacket(queryStat, session, binary.BigEndian.AppendUint32(nil, uint32(token)))); err != nil {
		return Basic{}, fmt.Errorf("send stat: %w", err)
	}
	n, err = conn.Read(buf)
	if err != nil {
		return Basic{}, fmt.Errorf("read stat: %w", err)
	}
	return parseBasic(buf[:n], session)
}

func queryPacket(kind byte, session uint32, payload []byte) []byte {
	b := make([]byte, 0, 7+len(payload))
	b = append(b, queryMagic...)
	b = append(b, kind)
	b = binary.BigEndian.AppendUint32(b, session)
	return append(b, payload...)
}

// checkHeader validates the type byte and session id of a reply and
// returns the remaining body.
func checkHeader(b []byte, kind byte, session uint32) ([]byte, error) {
	if len(b) < 5 {
		return nil, ErrShortPacket
	}
	if b[0] != kind {
		return nil, fmt.Errorf("%w: reply type 0x%02x", ErrBadReply, b[0])
	}
	if binary.BigEndian.Uint32(b[1:5]) != session {
		return nil, fmt.Errorf("%w: session mismatch", ErrBadReply)
	}
	return b[5:], nil
}

// parseChallenge reads the token, sent back as a null-terminated decimal.
func parseChallenge(b []byte, session uint32) (int32, error) {
	body, err := checkHeader(b, queryHandshake, session)
	if err != nil {
		return 0, err
	}
	s, _ := cstring(body)
	token, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: challenge %q", ErrBadReply, s)
	}
	return int32(token), nil
}

func parseBasic(b []byte, session uint32) (Basic, error) {
	body, err := checkHeader(b, queryStat, session)
	if err != nil {
		return Basic{}, err
	}

	var fields [5]string
	for i := range fields {
		if len(body) == 0 {
			return Basic{}, ErrShortPacket
		}
		fields[i], body = cstring(body)
	}
	if len(body) < 2 {
		return Basic{}, ErrShortPacket
	}

	res := Basic{
		MOTD:     fields[0],
		GameType: fields[1],
		Map:      fields[2],
		HostPort: int(binary.LittleEndian.Uint16(body[:2])),
	}
	res.Players, _ = strconv.Atoi(fields[3])
	res.MaxPlayers, _ = strconv.Atoi(fields[4])
	res.HostIP, _ = cstring(body[2:])
	return res, nil
}

// cstring splits b at the first NUL.
func cstring(b []byte) (string, []byte) {
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return string(b), nil
	}
	return string(b[:i]), b[i+1:]
}
