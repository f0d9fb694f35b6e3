// Package scripts bundles and minifies the project's JavaScript sources.
package scripts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/toastate/toastpipe/internal/fileset"
	"github.com/toastate/toastpipe/internal/fsutil"
	"github.com/toastate/toastpipe/internal/tlogger"
)

// Bundle concatenates the files of the set, in glob order and separated by a newline,
// into folder/name. It returns the bundle path relative to the set root, or "" when
// nothing matched and no bundle was written.
func Bundle(ctx context.Context, files *fileset.Set, folder, name string) (string, error) {
	list, err := files.Files()
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		tlogger.Warn("task", "concat", "msg", "no script sources matched")
		return "", nil
	}

	out := path.Join(fileset.Clean(folder), name)

	var buf bytes.Buffer
	written := 0
	for _, f := range list {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if f.Path == out {
			continue
		}
		content, err := os.ReadFile(files.Abs(f))
		if err != nil {
			return "", fmt.Errorf("read %s: %w", f.Path, err)
		}
		if written > 0 {
			buf.WriteByte('\n')
		}
		buf.Write(content)
		written++
		tlogger.Debug("task", "concat", "msg", "appended", "file", f.Path)
	}

	err = fsutil.WriteFile(filepath.Join(files.Root(), filepath.FromSlash(out)), buf.Bytes())
	if err != nil {
		return "", err
	}
	return out, nil
}
