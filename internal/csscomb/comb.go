package csscomb

import (
	"bytes"
	"context"
	"errors"
	"os"

	"github.com/toastate/toastpipe/internal/fileset"
	"github.com/toastate/toastpipe/internal/fsutil"
	"github.com/toastate/toastpipe/internal/tlogger"
)

// Comb formats every file of the set in place. A file that fails is reported and left
// untouched, the others are still formatted. The returned paths are the files that changed.
func Comb(ctx context.Context, files *fileset.Set) ([]string, error) {
	list, err := files.Files()
	if err != nil {
		return nil, err
	}

	var changed []string
	var errs []error
	for _, f := range list {
		if err := ctx.Err(); err != nil {
			return changed, err
		}

		abs := files.Abs(f)
		src, err := os.ReadFile(abs)
		if err != nil {
			errs = append(errs, &fsutil.FileError{File: f.Path, Err: err})
			continue
		}

		out, err := Format(src)
		if err != nil {
			tlogger.Error("task", "comb", "file", f.Path, "err", err)
			errs = append(errs, &fsutil.FileError{File: f.Path, Err: err})
			continue
		}

		if bytes.Equal(out, src) {
			continue
		}
		if err := fsutil.WriteFile(abs, out); err != nil {
			errs = append(errs, &fsutil.FileError{File: f.Path, Err: err})
			continue
		}
		tlogger.Debug("task", "comb", "msg", "formatted", "file", f.Path)
		changed = append(changed, f.Path)
	}

	return changed, errors.Join(errs...)
}
