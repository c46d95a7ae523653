package wad

import (
	"fmt"
	"hash"
	"hash/crc32"
	"io"
)

// ChecksumWriter accumulates a CRC-32 (IEEE) over every byte written
// through it. Seeking does not affect the checksum.
type ChecksumWriter struct {
	w   io.WriteSeeker
	crc hash.Hash32
}

// NewChecksumWriter wraps w.
func NewChecksumWriter(w io.WriteSeeker) *ChecksumWriter {
	return &ChecksumWriter{w: w, crc: crc32.NewIEEE()}
}

func (c *ChecksumWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.crc.Write(p[:n])
	return n, err
}

// Tell returns the current position of the underlying writer.
func (c *ChecksumWriter) Tell() (int64, error) {
	return c.w.Seek(0, io.SeekCurrent)
}

// Seek repositions the underlying writer.
func (c *ChecksumWriter) Seek(offset int64, whence int) (int64, error) {
	return c.w.Seek(offset, whence)
}

// Checksum returns the CRC-32 of everything written so far.
func (c *ChecksumWriter) Checksum() uint32 {
	return c.crc.Sum32()
}

// Patch overwrites previously written bytes at pos without touching the
// checksum, then returns to where the writer was.
func (c *ChecksumWriter) Patch(pos int64, p []byte) error {
	end, err := c.Tell()
	if err != nil {
		return fmt.Errorf("failed to get current position: %w", err)
	}
	if _, err := c.w.Seek(pos, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to %d: %w", pos, err)
	}
	if _, err := c.w.Write(p); err != nil {
		return fmt.Errorf("failed to patch %d bytes at %d: %w", len(p), pos, err)
	}
	if _, err := c.w.Seek(end, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek back to %d: %w", end, err)
	}
	return nil
}
