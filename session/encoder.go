package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// CurrentSchemaVersion is written by [Encode].
const CurrentSchemaVersion uint8 = 1

const (
	flagHasRefresh byte = 1 << 0
)

var errFieldTooLong = errors.New("field too long")

// Encode serializes s using the current schema.
func Encode(s *State) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil state")
	}

	var buf bytes.Buffer
	buf.WriteByte(CurrentSchemaVersion)

	var flags byte
	if s.Refresh != nil {
		flags |= flagHasRefresh
	}
	buf.WriteByte(flags)

	if err := writeString(&buf, s.AccessToken); err != nil {
		return nil, fmt.Errorf("access token: %w", err)
	}
	if err := writeString(&buf, s.UserID); err != nil {
		return nil, fmt.Errorf("user id: %w", err)
	}

	if s.Refresh != nil {
		for _, f := range []string{s.Refresh.Name, s.Refresh.Value, s.Refresh.Path} {
			if err := writeString(&buf, f); err != nil {
				return nil, fmt.Errorf("refresh cookie: %w", err)
			}
		}
		if err := binary.Write(&buf, binary.BigEndian, s.Refresh.Expires); err != nil {
			return nil, err
		}
	}

	if err := binary.Write(&buf, binary.BigEndian, s.SavedAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a blob produced by [Encode].
func Decode(data []byte) (*State, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != CurrentSchemaVersion {
		return nil, fmt.Errorf("unsupported session schema version %d", version)
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	s := &State{SchemaVersion: version}
	if s.AccessToken, err = readString(reader); err != nil {
		return nil, err
	}
	if s.UserID, err = readString(reader); err != nil {
		return nil, err
	}

	if flags&flagHasRefresh != 0 {
		rc := &RefreshCookie{}
		if rc.Name, err = readString(reader); err != nil {
			return nil, err
		}
		if rc.Value, err = readString(reader); err != nil {
			return nil, err
		}
		if rc.Path, err = readString(reader); err != nil {
			return nil, err
		}
		if err := binary.Read(reader, binary.BigEndian, &rc.Expires); err != nil {
			return nil, err
		}
		s.Refresh = rc
	}

	if err := binary.Read(reader, binary.BigEndian, &s.SavedAt); err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes in session blob")
	}

	return s, nil
}

func writeString(buf *bytes.Buffer, v string) error {
	if len(v) > math.MaxUint16 {
		return errFieldTooLong
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(v))); err != nil {
		return err
	}
	buf.WriteString(v)
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
