package rimage

import (
	"image"
	"image/color"
	"math"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestNewImageFromBuffer(t *testing.T) {
	img, err := NewImageFromBuffer(2, 1, []Color{Red, Blue})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.GetXY(1, 0), test.ShouldResemble, Blue)
	test.That(t, img.Bounds(), test.ShouldResemble, image.Rect(0, 0, 2, 1))
	test.That(t, img.In(2, 0), test.ShouldBeFalse)
	test.That(t, img.At(5, 5), test.ShouldResemble, color.NRGBA{})

	_, err = NewImageFromBuffer(2, 2, []Color{Red})
	test.That(t, err, test.ShouldBeError)
	test.That(t, err.Error(), test.ShouldContainSubstring, ErrBufferSize.Error())
}

func TestConvertImage(t *testing.T) {
	src := image.NewNRGBA(image.Rect(10, 10, 12, 11))
	src.Set(10, 10, color.NRGBA{1, 2, 3, 255})
	src.Set(11, 10, color.NRGBA{4, 5, 6, 255})

	img := ConvertImage(src)
	test.That(t, img.Width(), test.ShouldEqual, 2)
	test.That(t, img.Height(), test.ShouldEqual, 1)
	test.That(t, img.GetXY(0, 0), test.ShouldResemble, Color{1, 2, 3})
	test.That(t, img.GetXY(1, 0), test.ShouldResemble, Color{4, 5, 6})
	test.That(t, ConvertImage(img), test.ShouldEqual, img)
}

func TestColorHex(t *testing.T) {
	c, err := NewColorFromHex("#ff8000")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c, test.ShouldResemble, Color{255, 128, 0})
	test.That(t, c.Hex(), test.ShouldEqual, "#ff8000")

	_, err = NewColorFromHex("orange")
	test.That(t, err, test.ShouldNotBeNil)

	r, g, b, a := Red.RGBA()
	test.That(t, []uint32{r, g, b, a}, test.ShouldResemble, []uint32{0xffff, 0, 0, 0xffff})
}

func TestDecodeRaw(t *testing.T) {
	// 2x2 bgr8 with one byte of row padding
	data := []byte{
		0, 0, 255, 255, 0, 0, 99,
		0, 255, 0, 1, 2, 3, 99,
	}
	img, err := DecodeRaw(2, 2, 7, EncodingBGR8, data)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.GetXY(0, 0), test.ShouldResemble, Red)
	test.That(t, img.GetXY(1, 0), test.ShouldResemble, Blue)
	test.That(t, img.GetXY(0, 1), test.ShouldResemble, Green)
	test.That(t, img.GetXY(1, 1), test.ShouldResemble, Color{3, 2, 1})

	mono, err := DecodeRaw(1, 1, 0, EncodingMono8, []byte{7})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mono.GetXY(0, 0), test.ShouldResemble, Color{7, 7, 7})

	_, err = DecodeRaw(2, 2, 0, "16UC1", data)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, ErrUnsupportedEncoding.Error())

	_, err = DecodeRaw(2, 2, 0, EncodingRGB8, data[:5])
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, ErrBufferSize.Error())

	_, err = DecodeRaw(2, 2, 3, EncodingRGB8, data)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDecodeRawHugeDimensions(t *testing.T) {
	data := make([]byte, 16)
	for _, tc := range []struct {
		width, height, step int
	}{
		{1 << 40, 1 << 40, 0},
		{math.MaxInt/3 + 1, 1, 0},
		{2, 3, math.MaxInt / 2},
		{1, math.MaxInt, 3},
	} {
		_, err := DecodeRaw(tc.width, tc.height, tc.step, EncodingRGB8, data)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, ErrBufferSize.Error())
	}
}

func TestEncodeRawRoundTrip(t *testing.T) {
	img, err := NewImageFromBuffer(3, 1, []Color{Red, Green, {9, 8, 7}})
	test.That(t, err, test.ShouldBeNil)
	for _, enc := range []string{EncodingRGB8, EncodingBGR8, EncodingRGBA8, EncodingBGRA8} {
		raw, err := EncodeRaw(img, enc)
		test.That(t, err, test.ShouldBeNil)
		back, err := DecodeRaw(3, 1, 0, enc, raw)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, back, test.ShouldResemble, img)
	}
	_, err = EncodeRaw(img, EncodingMono8)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestImageFiles(t *testing.T) {
	img, err := NewImageFromBuffer(2, 2, []Color{Red, Green, Blue, White})
	test.That(t, err, test.ShouldBeNil)

	for _, name := range []string{"img.png", "img.ppm", "img.bmp"} {
		fn := filepath.Join(t.TempDir(), name)
		test.That(t, WriteImageToFile(fn, img), test.ShouldBeNil)
		read, err := ReadImageFromFile(fn)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, read, test.ShouldResemble, img)
	}

	_, err = ReadImageFromFile(filepath.Join(t.TempDir(), "missing.png"))
	test.That(t, err, test.ShouldNotBeNil)
}
