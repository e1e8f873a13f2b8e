// Package atomicfile writes files through a sibling temp file and a rename,
// so readers never observe a partially written artifact.
package atomicfile

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Write creates path by streaming into a temp file in the same directory and
// renaming it into place once fn succeeds. On any error the temp file is removed
// and an existing file at path is left untouched.
func Write(path string, fn func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "atomicfile: create dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "atomicfile: create temp file")
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = fn(tmp); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return eris.Wrap(err, "atomicfile: close temp file")
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return eris.Wrap(err, "atomicfile: chmod temp file")
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "atomicfile: rename into %s", path)
	}
	return nil
}

// WriteJSON encodes v as UTF-8 JSON without HTML escaping and writes it atomically.
// Encoding happens before the file is touched, so an unencodable value writes nothing.
func WriteJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return eris.Wrapf(err, "atomicfile: encode %s", filepath.Base(path))
	}

	return Write(path, func(w io.Writer) error {
		_, err := w.Write(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
		return eris.Wrap(err, "atomicfile: write")
	})
}
