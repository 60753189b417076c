package imagestore_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/rocatrun/internal/adapters/imagestore"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLocal(t *testing.T) {
	Convey("Given a local image store with one file", t, func() {
		dir := t.TempDir()
		s, err := imagestore.NewLocal(dir)
		So(err, ShouldBeNil)
		file := filepath.Join(dir, "abc.png")
		So(os.WriteFile(file, []byte("png"), 0o600), ShouldBeNil)

		Convey("When it is deleted by URL", func() {
			err := s.Delete(context.Background(), "https://cdn.example.com/images/abc.png?v=2")

			Convey("Then the file is gone", func() {
				So(err, ShouldBeNil)
				_, statErr := os.Stat(file)
				So(errors.Is(statErr, os.ErrNotExist), ShouldBeTrue)
			})
		})

		Convey("When a missing file is deleted", func() {
			Convey("Then it succeeds", func() {
				So(s.Delete(context.Background(), "images/none.png"), ShouldBeNil)
			})
		})

		Convey("When the URL tries to escape the directory", func() {
			p, err := s.Path("../../etc/passwd")

			Convey("Then only the base name is used", func() {
				So(err, ShouldBeNil)
				So(p, ShouldEqual, filepath.Join(dir, "passwd"))
			})
		})

		Convey("When the URL names no file", func() {
			Convey("Then it is rejected", func() {
				So(errors.Is(s.Delete(context.Background(), "/"), imagestore.ErrInvalidName), ShouldBeTrue)
				So(errors.Is(s.Delete(context.Background(), ""), imagestore.ErrInvalidName), ShouldBeTrue)
			})
		})
	})

	Convey("Given an empty directory name", t, func() {
		_, err := imagestore.NewLocal("")
		So(err, ShouldNotBeNil)
	})
}

func TestSameObject(t *testing.T) {
	Convey("Given image references", t, func() {
		Convey("Then references resolving to one file are the same object", func() {
			So(imagestore.SameObject("https://cdn/x/default.png", "default.png"), ShouldBeTrue)
			So(imagestore.SameObject("images/a/abc.png", "https://cdn.example.com/b/abc.png?v=3"), ShouldBeTrue)
		})

		Convey("Then different file names are different objects", func() {
			So(imagestore.SameObject("images/a.png", "images/b.png"), ShouldBeFalse)
		})

		Convey("Then invalid references only match themselves", func() {
			So(imagestore.SameObject("", ""), ShouldBeTrue)
			So(imagestore.SameObject("/", "default.png"), ShouldBeFalse)
		})

		Convey("Then the object name is the last path element", func() {
			name, err := imagestore.ObjectName("https://cdn/x/y/run.png?size=2")
			So(err, ShouldBeNil)
			So(name, ShouldEqual, "run.png")
		})
	})
}
