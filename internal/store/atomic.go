package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

// writeJSONAtomic marshals v and writes it to path via a temp-file-then-
// rename, so a crash mid-write never leaves a half-written document behind.
func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fault.Wrap(err, ftag.With(ftag.Internal), fmsg.With("marshal "+path))
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fault.Wrap(err, ftag.With(ftag.Internal), fmsg.With("create temp file in "+dir))
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fault.Wrap(err, ftag.With(ftag.Internal), fmsg.With("write temp file"))
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fault.Wrap(err, ftag.With(ftag.Internal), fmsg.With("sync temp file"))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fault.Wrap(err, ftag.With(ftag.Internal), fmsg.With("close temp file"))
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fault.Wrap(err, ftag.With(ftag.Internal), fmsg.With("rename into "+path))
	}
	return nil
}

// readJSON loads path into v. A missing file is not an error; v is left at
// its zero value and the caller treats that as "nothing persisted yet".
func readJSON(path string, v interface{}) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fault.Wrap(err, ftag.With(ftag.Internal), fmsg.With("read "+path))
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fault.Wrap(err, ftag.With(ftag.Internal), fmsg.With("parse "+path))
	}
	return true, nil
}
