package nickname_test

import (
	"fmt"
	"testing"

	"github.com/okian/rocatrun/internal/domain/nickname"
	. "github.com/smartystreets/goconvey/convey"
)

func TestValidate(t *testing.T) {
	Convey("Given candidate nicknames", t, func() {
		Convey("Then well-formed nicknames pass", func() {
			for _, n := range []string{"ab", "runner", "고양이", "냥냥펀치", "Cat01", "가a1"} {
				So(nickname.Validate(n), ShouldBeNil)
			}
		})

		Convey("Then blank nicknames are empty", func() {
			for _, n := range []string{"", "   ", "\t"} {
				So(nickname.Validate(n), ShouldEqual, nickname.ErrEmpty)
			}
		})

		Convey("Then length is counted in characters", func() {
			So(nickname.Validate("a"), ShouldEqual, nickname.ErrLength)
			So(nickname.Validate("abcdefg"), ShouldEqual, nickname.ErrLength)
			So(nickname.Validate("고양이고양이"), ShouldBeNil)
			So(nickname.Validate("고양이고양이고"), ShouldEqual, nickname.ErrLength)
		})

		Convey("Then symbols, spaces and jamo are rejected", func() {
			for _, n := range []string{"ab cd", "cat!", "ㄱㄴㄷ", "ab_c", "ñandu"} {
				So(nickname.Validate(n), ShouldEqual, nickname.ErrPattern)
			}
		})
	})
}

func TestCode(t *testing.T) {
	Convey("Given nickname errors", t, func() {
		Convey("Then each maps to its API code, even when wrapped", func() {
			So(nickname.Code(nickname.ErrEmpty), ShouldEqual, nickname.CodeEmpty)
			So(nickname.Code(nickname.ErrLength), ShouldEqual, nickname.CodeLengthInvalid)
			So(nickname.Code(nickname.ErrPattern), ShouldEqual, nickname.CodePatternInvalid)
			So(nickname.Code(fmt.Errorf("create: %w", nickname.ErrDuplicate)), ShouldEqual, nickname.CodeDuplicate)
		})

		Convey("Then other errors have no code", func() {
			So(nickname.Code(nil), ShouldEqual, "")
			So(nickname.Code(fmt.Errorf("boom")), ShouldEqual, "")
			So(nickname.IsNicknameError(fmt.Errorf("boom")), ShouldBeFalse)
			So(nickname.IsNicknameError(nickname.ErrPattern), ShouldBeTrue)
		})
	})
}

func TestNormalize(t *testing.T) {
	Convey("Given a Hangul nickname sent as conjoining jamo", t, func() {
		decomposed := "\u1112\u1161\u11ab\u1112\u1161\u11ab"

		Convey("Then it fails validation as is", func() {
			So(nickname.Validate(decomposed), ShouldEqual, nickname.ErrPattern)
		})

		Convey("Then the normalized form is the precomposed name and is valid", func() {
			n := nickname.Normalize(decomposed)
			So(n, ShouldEqual, "\ud55c\ud55c")
			So(nickname.Validate(n), ShouldBeNil)
		})

		Convey("Then ASCII names are unchanged", func() {
			So(nickname.Normalize("runner"), ShouldEqual, "runner")
		})
	})
}
