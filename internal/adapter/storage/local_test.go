package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/semmidev/stashd/internal/domain"
	. "github.com/smartystreets/goconvey/convey"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk went away")
}

func TestLocalStorage(t *testing.T) {
	Convey("Given a LocalStorage", t, func() {
		tempDir := t.TempDir()
		ctx := context.Background()

		Convey("NewLocal", func() {
			Convey("When creating with non-existent path", func() {
				newPath := filepath.Join(tempDir, "new", "nested", "dir")
				storage, err := NewLocal(newPath)

				Convey("It should create directory and succeed", func() {
					So(err, ShouldBeNil)
					So(storage, ShouldNotBeNil)
					So(storage.basePath, ShouldEqual, newPath)

					info, err := os.Stat(newPath)
					So(err, ShouldBeNil)
					So(info.IsDir(), ShouldBeTrue)
				})
			})
		})

		storage, err := NewLocal(tempDir)
		So(err, ShouldBeNil)

		Convey("FindFolders and CreateFolder", func() {
			Convey("When the folder does not exist", func() {
				folders, err := storage.FindFolders(ctx, "backups")

				So(err, ShouldBeNil)
				So(folders, ShouldBeEmpty)
			})

			Convey("When the folder was created", func() {
				created, err := storage.CreateFolder(ctx, "backups")
				So(err, ShouldBeNil)

				folders, err := storage.FindFolders(ctx, "backups")

				Convey("It should be found under the same id", func() {
					So(err, ShouldBeNil)
					So(len(folders), ShouldEqual, 1)
					So(folders[0].ID, ShouldEqual, created.ID)
				})
			})

			Convey("When the name escapes the base path", func() {
				_, err := storage.CreateFolder(ctx, "../outside")

				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "invalid object id")
			})
		})

		Convey("CreateObject", func() {
			_, err := storage.CreateFolder(ctx, "backups")
			So(err, ShouldBeNil)

			Convey("When uploading a valid body", func() {
				obj, err := storage.CreateObject(ctx, domain.ObjectSpec{
					Name:   "b-20260101-000000.tar.gz",
					Parent: "backups",
				}, strings.NewReader("test content"))

				Convey("It should store the object", func() {
					So(err, ShouldBeNil)
					So(obj.ID, ShouldEqual, "backups/b-20260101-000000.tar.gz")
					So(obj.Size, ShouldEqual, 12)

					content, err := os.ReadFile(storage.GetPath(obj.ID))
					So(err, ShouldBeNil)
					So(string(content), ShouldEqual, "test content")
				})
			})

			Convey("When the body fails midway", func() {
				_, err := storage.CreateObject(ctx, domain.ObjectSpec{
					Name:   "broken.tar.gz",
					Parent: "backups",
				}, failingReader{})

				Convey("It should report an incomplete upload and leave nothing behind", func() {
					So(errors.Is(err, domain.ErrUploadIncomplete), ShouldBeTrue)

					entries, err := os.ReadDir(filepath.Join(tempDir, "backups"))
					So(err, ShouldBeNil)
					So(entries, ShouldBeEmpty)
				})
			})

			Convey("When the container does not exist", func() {
				_, err := storage.CreateObject(ctx, domain.ObjectSpec{Name: "x", Parent: "missing"}, strings.NewReader("x"))

				So(errors.Is(err, domain.ErrRemoteUnavailable), ShouldBeTrue)
			})
		})

		Convey("ListObjects", func() {
			_, err := storage.CreateFolder(ctx, "backups")
			So(err, ShouldBeNil)
			dir := filepath.Join(tempDir, "backups")
			So(os.WriteFile(filepath.Join(dir, "b-20260102-000000.tar.gz"), []byte("two"), 0644), ShouldBeNil)
			So(os.WriteFile(filepath.Join(dir, "b-20260101-000000.tar.gz"), []byte("one"), 0644), ShouldBeNil)
			So(os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644), ShouldBeNil)
			So(os.Mkdir(filepath.Join(dir, "b-subdir"), 0755), ShouldBeNil)

			old := time.Now().Add(-48 * time.Hour)
			So(os.Chtimes(filepath.Join(dir, "b-20260101-000000.tar.gz"), old, old), ShouldBeNil)

			objects, err := storage.ListObjects(ctx, domain.ObjectQuery{Parent: "backups", NamePrefix: "b-"})

			Convey("It should list matching files sorted by name", func() {
				So(err, ShouldBeNil)
				So(len(objects), ShouldEqual, 2)
				So(objects[0].Name, ShouldEqual, "b-20260101-000000.tar.gz")
				So(objects[1].Name, ShouldEqual, "b-20260102-000000.tar.gz")
				So(objects[0].CreatedTime.Before(objects[1].CreatedTime), ShouldBeTrue)
				So(objects[0].ID, ShouldEqual, "backups/b-20260101-000000.tar.gz")
			})
		})

		Convey("DeleteObject", func() {
			_, err := storage.CreateFolder(ctx, "backups")
			So(err, ShouldBeNil)

			Convey("When deleting existing file", func() {
				So(os.WriteFile(filepath.Join(tempDir, "backups", "delete_me.txt"), []byte("test"), 0644), ShouldBeNil)

				err := storage.DeleteObject(ctx, "backups/delete_me.txt")

				Convey("It should delete successfully", func() {
					So(err, ShouldBeNil)
					_, err := os.Stat(filepath.Join(tempDir, "backups", "delete_me.txt"))
					So(os.IsNotExist(err), ShouldBeTrue)
				})
			})

			Convey("When deleting non-existent file", func() {
				err := storage.DeleteObject(ctx, "backups/nonexistent.txt")

				Convey("It should return error", func() {
					So(err, ShouldNotBeNil)
					So(err.Error(), ShouldContainSubstring, "failed to delete file")
				})
			})
		})

		Convey("Name", func() {
			So(storage.Name(), ShouldEqual, "local")
		})
	})
}

func TestDisabledStorage(t *testing.T) {
	Convey("Given a DisabledStorage", t, func() {
		ctx := context.Background()
		storage := NewDisabled("no credentials")

		Convey("Every operation fails as disabled", func() {
			_, err := storage.FindFolders(ctx, "x")
			So(errors.Is(err, domain.ErrRemoteDisabled), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "no credentials")

			_, err = storage.CreateFolder(ctx, "x")
			So(errors.Is(err, domain.ErrRemoteDisabled), ShouldBeTrue)

			_, err = storage.CreateObject(ctx, domain.ObjectSpec{}, strings.NewReader(""))
			So(errors.Is(err, domain.ErrRemoteDisabled), ShouldBeTrue)

			_, err = storage.ListObjects(ctx, domain.ObjectQuery{})
			So(errors.Is(err, domain.ErrRemoteDisabled), ShouldBeTrue)

			So(errors.Is(storage.DeleteObject(ctx, "x"), domain.ErrRemoteDisabled), ShouldBeTrue)
		})

		Convey("Without a reason the sentinel is returned as is", func() {
			_, err := NewDisabled("").FindFolders(ctx, "x")
			So(err, ShouldEqual, domain.ErrRemoteDisabled)
		})
	})
}
