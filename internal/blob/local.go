package blob

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// LocalDriver keeps blobs on the local filesystem under Root, sharded by
// year/month.
type LocalDriver struct {
	Root string
}

func (d *LocalDriver) Put(_ context.Context, key string, r io.Reader) (string, int64, string, error) {
	if key == "" {
		now := time.Now().UTC()
		key = filepath.ToSlash(filepath.Join(
			fmt.Sprintf("%04d/%02d", now.Year(), int(now.Month())),
			randomHex(16),
		))
	}
	full := filepath.Join(d.Root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", 0, "", err
	}
	f, err := os.Create(full)
	if err != nil {
		return "", 0, "", err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), r)
	if err != nil {
		return "", 0, "", err
	}
	return key, n, hex.EncodeToString(h.Sum(nil)), nil
}

func (d *LocalDriver) Get(_ context.Context, key string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(d.Root, filepath.FromSlash(key)))
}

func (d *LocalDriver) Delete(_ context.Context, key string) error {
	return os.Remove(filepath.Join(d.Root, filepath.FromSlash(key)))
}

// randomHex returns hex of n random bytes
func randomHex(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
