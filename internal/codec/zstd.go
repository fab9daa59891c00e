package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"romdock/internal/fscopy"
)

// Compressed container layout: 4-byte magic, 8-byte little-endian original
// size, then one zstd stream of the original bytes.
var magic = [4]byte{'R', 'D', 'Z', '1'}

const headerSize = 12

// CompressedName maps a plain game file name to its compressed counterpart
// (.nsp to .nsz, .xci to .xcz).
func CompressedName(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".nsp":
		return strings.TrimSuffix(path, filepath.Ext(path)) + ".nsz", nil
	case ".xci":
		return strings.TrimSuffix(path, filepath.Ext(path)) + ".xcz", nil
	default:
		return "", fmt.Errorf("unsupported extension for compression: %s", filepath.Ext(path))
	}
}

// DecompressedName is the inverse of CompressedName.
func DecompressedName(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".nsz":
		return strings.TrimSuffix(path, filepath.Ext(path)) + ".nsp", nil
	case ".xcz":
		return strings.TrimSuffix(path, filepath.Ext(path)) + ".xci", nil
	default:
		return "", fmt.Errorf("unsupported extension for decompression: %s", filepath.Ext(path))
	}
}

// Compress writes the container for src to dst. The cell tracks input bytes
// consumed against the input size.
func Compress(src, dst string, cell *Cell) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat input: %w", err)
	}
	cell.SetTotal(fi.Size())

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer out.Close()

	var hdr [headerSize]byte
	copy(hdr[:4], magic[:])
	binary.LittleEndian.PutUint64(hdr[4:], uint64(fi.Size()))
	if _, err := out.Write(hdr[:]); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return fmt.Errorf("failed to init encoder: %w", err)
	}
	if err := copyCounted(enc, in, cell); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to flush encoder: %w", err)
	}
	return out.Sync()
}

// Decompress restores the original file from a container written by
// Compress. The cell tracks output bytes against the recorded original size.
func Decompress(src, dst string, cell *Cell) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer in.Close()

	size, err := readHeader(in)
	if err != nil {
		return err
	}
	cell.SetTotal(size)

	dec, err := zstd.NewReader(in)
	if err != nil {
		return fmt.Errorf("failed to init decoder: %w", err)
	}
	defer dec.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer out.Close()

	if err := copyCounted(out, dec.IOReadCloser(), cell); err != nil {
		return err
	}
	if done, _ := cell.Load(); done != size {
		return fmt.Errorf("decompressed size mismatch: got %d, header says %d", done, size)
	}
	return out.Sync()
}

// VerifyContainer decodes src to /dev/null and checks the output length
// against the header. Used after compression when the caller asked for a
// verify pass.
func VerifyContainer(src string, cell *Cell) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer in.Close()

	size, err := readHeader(in)
	if err != nil {
		return err
	}
	cell.SetTotal(size)

	dec, err := zstd.NewReader(in)
	if err != nil {
		return fmt.Errorf("failed to init decoder: %w", err)
	}
	defer dec.Close()

	if err := copyCounted(io.Discard, dec.IOReadCloser(), cell); err != nil {
		return err
	}
	if done, _ := cell.Load(); done != size {
		return fmt.Errorf("decompressed size mismatch: got %d, header says %d", done, size)
	}
	return nil
}

func readHeader(in io.Reader) (int64, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(in, hdr[:]); err != nil {
		return 0, fmt.Errorf("failed to read header: %w", err)
	}
	if [4]byte(hdr[:4]) != magic {
		return 0, fmt.Errorf("not a compressed game file (bad magic)")
	}
	return int64(binary.LittleEndian.Uint64(hdr[4:])), nil
}

func copyCounted(dst io.Writer, src io.Reader, cell *Cell) error {
	buf := make([]byte, fscopy.ChunkSize)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return fmt.Errorf("write failed: %w", werr)
			}
			cell.Add(int64(n))
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return fmt.Errorf("read failed: %w", rerr)
		}
	}
}
