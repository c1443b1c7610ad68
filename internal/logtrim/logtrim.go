// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

// Package logtrim keeps container log files bounded by cutting them down to
// their most recent bytes once they grow past a threshold.
package logtrim

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/kballard/go-shellquote"
	"github.com/klauspost/compress/zstd"
)

// DefaultGlob matches the json-file logs of every Docker container.
const DefaultGlob = "/var/lib/docker/containers/*/*-json.log"

const copyChunk = 1 << 20

// ErrUnsafeGlob is returned for globs that would need quoting to be safe in
// a remote shell, which would also stop them from expanding.
var ErrUnsafeGlob = errors.New("log glob contains shell metacharacters")

// now is replaced in tests.
var now = time.Now

// ParseSize accepts human sizes such as "100MB", "1GiB" or "512k".
func ParseSize(s string) (int64, error) {
	n, err := humanize.ParseBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n > uint64(1<<62) {
		return 0, fmt.Errorf("size %q is too large", s)
	}
	return int64(n), nil
}

// TrimFile keeps the last keep bytes of path when it is larger than
// maxSize. The discarded head is copied to archive when archive is not nil.
// The file is rewritten in place so a process holding it open keeps
// appending to the same inode.
func TrimFile(path string, maxSize, keep int64, archive io.Writer) (bool, error) {
	if keep < 0 || maxSize < 0 {
		return false, fmt.Errorf("sizes must not be negative")
	}
	if keep > maxSize {
		return false, fmt.Errorf("keep (%s) must not exceed max size (%s)",
			humanize.IBytes(uint64(keep)), humanize.IBytes(uint64(maxSize)))
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	size := st.Size()
	if size <= maxSize {
		return false, nil
	}

	head := size - keep
	if archive != nil {
		if _, err := io.Copy(archive, io.NewSectionReader(f, 0, head)); err != nil {
			return false, fmt.Errorf("archive head of %s: %w", path, err)
		}
	}

	// dst always trails src, so copying forward never reads overwritten bytes.
	buf := make([]byte, copyChunk)
	var dst int64
	for src := head; src < size; {
		n, rerr := f.ReadAt(buf, src)
		if n > 0 {
			if _, err := f.WriteAt(buf[:n], dst); err != nil {
				return false, fmt.Errorf("rewrite %s: %w", path, err)
			}
			src += int64(n)
			dst += int64(n)
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			return false, fmt.Errorf("read %s: %w", path, rerr)
		}
	}
	if err := f.Truncate(dst); err != nil {
		return false, fmt.Errorf("truncate %s: %w", path, err)
	}
	return true, nil
}

type archiveFile struct {
	*zstd.Encoder
	file *os.File
}

func (a *archiveFile) Close() error {
	encErr := a.Encoder.Close()
	fileErr := a.file.Close()
	if encErr != nil {
		return encErr
	}
	return fileErr
}

// ArchiveWriter creates <dir>/<base>-<timestamp>.log.zst and returns a
// zstd writer over it. Closing the writer flushes and closes the file.
func ArchiveWriter(dir, base string) (io.WriteCloser, string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, "", fmt.Errorf("create archive dir: %w", err)
	}
	base = strings.TrimSuffix(filepath.Base(base), ".log")
	name := filepath.Join(dir, fmt.Sprintf("%s-%s.log.zst", base, now().UTC().Format("20060102T150405Z")))
	file, err := os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, "", fmt.Errorf("create archive: %w", err)
	}
	enc, err := zstd.NewWriter(file)
	if err != nil {
		_ = file.Close()
		_ = os.Remove(name)
		return nil, "", fmt.Errorf("could not create zstd writer: %w", err)
	}
	return &archiveFile{Encoder: enc, file: file}, name, nil
}

// RemoteCommand returns a shell command that trims every file matching
// glob on a remote host the same way TrimFile does locally.
func RemoteCommand(glob string, maxSize, keep int64) (string, error) {
	if glob == "" {
		glob = DefaultGlob
	}
	if strings.ContainsAny(glob, " \t\n'\"`$;&|<>(){}\\") {
		return "", fmt.Errorf("%w: %q", ErrUnsafeGlob, glob)
	}
	script := fmt.Sprintf(
		`for f in %s; do [ -f "$f" ] || continue; `+
			`if [ "$(stat -c %%s "$f")" -gt %d ]; then `+
			`tail -c %d "$f" > "$f.trim" && cat "$f.trim" > "$f"; rm -f "$f.trim"; `+
			`echo "trimmed $f"; fi; done`,
		glob, maxSize, keep)
	return shellquote.Join("sudo", "sh", "-c", script), nil
}
