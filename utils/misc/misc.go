package misc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SleepCtx blocks for delay or until ctx is done, whichever comes first.
func SleepCtx(ctx context.Context, delay time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// CreateTMPDIR returns the scratch directory to use, creating it if needed.
// An empty configured path falls back to the OS temp dir.
func CreateTMPDIR(configured string) (string, error) {
	tmpdirPath := strings.TrimSuffix(configured, "/")
	if tmpdirPath == "" {
		tmpdirPath = os.TempDir()
	}
	if err := os.MkdirAll(tmpdirPath, os.ModePerm); err != nil {
		return "", fmt.Errorf("creating tmp dir %s: %w", tmpdirPath, err)
	}
	return tmpdirPath, nil
}

// SafeFileName replaces path separators and whitespace so that s can be used as a file name prefix.
func SafeFileName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == filepath.Separator, r == '/', r == ' ', r == '\t', r == ':':
			return '_'
		default:
			return r
		}
	}, s)
}

// TruncateStr cuts str down to at most limit bytes.
func TruncateStr(str string, limit int) string {
	if len(str) > limit {
		str = str[:limit]
	}
	return str
}
