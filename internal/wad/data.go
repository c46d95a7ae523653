package wad

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// readRecord reads exactly width bytes from r and decodes them big-endian
// into v. Records narrower than v (legacy layouts) leave the trailing
// fields zero; wider records have their extra bytes ignored.
func readRecord(r io.Reader, width int, v any) error {
	size := binary.Size(v)
	if size < 0 {
		return fmt.Errorf("cannot decode record into %T", v)
	}

	buf := make([]byte, max(width, size))
	if _, err := io.ReadFull(r, buf[:width]); err != nil {
		return err
	}

	return binary.Read(bytes.NewReader(buf[:size]), binary.BigEndian, v)
}

// marshalRecord encodes v big-endian.
func marshalRecord(v any) []byte {
	buf := new(bytes.Buffer)
	// bytes.Buffer writes cannot fail and every record type is fixed size
	_ = binary.Write(buf, binary.BigEndian, v)
	return buf.Bytes()
}

// readPayload reads n bytes without allocating n up front, so a corrupt
// length field fails on EOF instead of on a huge allocation.
func readPayload(r io.Reader, n int64) ([]byte, error) {
	buf := new(bytes.Buffer)
	if _, err := io.CopyN(buf, r, n); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf.Bytes(), nil
}

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}
