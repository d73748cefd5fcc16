// Package checksum holds the two content digests the upload client computes.
//
// Fingerprint is the provenance digest embedded in the registration
// metadata. MultipartETag estimates the ETag object storage assigns to a
// multipart upload. The two are unrelated and never compared.
package checksum

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// BlockSize is the read size used when fingerprinting a file.
const BlockSize = 4096

// Fingerprint streams the file at path in BlockSize reads and returns the
// hex encoded MD5 of its full contents.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return FingerprintReader(f)
}

// FingerprintReader is Fingerprint over an arbitrary reader.
func FingerprintReader(r io.Reader) (string, error) {
	h := md5.New()
	buf := make([]byte, BlockSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read block: %w", err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// MultipartETag computes the S3 style ETag for the file at path when it is
// uploaded in parts of partSize bytes.
func MultipartETag(path string, partSize int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return MultipartETagReader(f, partSize)
}

// MultipartETagReader hashes each partSize block of r. A single block yields
// the quoted hex digest of that block; several blocks yield the quoted hex
// digest of the concatenated block digests suffixed with "-<count>".
func MultipartETagReader(r io.Reader, partSize int64) (string, error) {
	if partSize <= 0 {
		return "", fmt.Errorf("invalid part size: %d", partSize)
	}

	var digests [][]byte
	for {
		h := md5.New()
		n, err := io.CopyN(h, r, partSize)
		if n > 0 {
			digests = append(digests, h.Sum(nil))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read part: %w", err)
		}
	}

	switch len(digests) {
	case 0:
		// empty input hashes like a single empty part
		sum := md5.Sum(nil)
		return fmt.Sprintf("%q", hex.EncodeToString(sum[:])), nil
	case 1:
		return fmt.Sprintf("%q", hex.EncodeToString(digests[0])), nil
	}

	combined := md5.New()
	for _, d := range digests {
		combined.Write(d)
	}
	return fmt.Sprintf("\"%s-%d\"", hex.EncodeToString(combined.Sum(nil)), len(digests)), nil
}
