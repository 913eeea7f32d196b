package usecase

import (
	"io/fs"
	"path/filepath"

	jujufs "github.com/juju/utils/v4/fs"
)

// stageCopy copies the file or tree at src to dst, which must not exist yet.
// A symlink at src itself is followed; links inside a tree are recreated as
// links. It returns the number of regular-file bytes staged.
func stageCopy(src, dst string) (int64, error) {
	resolved, err := filepath.EvalSymlinks(src)
	if err != nil {
		return 0, err
	}
	if err := jujufs.Copy(resolved, dst); err != nil {
		return 0, err
	}
	return treeSize(dst)
}

func treeSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
