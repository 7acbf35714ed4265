package frames_test

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"episodereel/internal/frames"
	"episodereel/internal/services"
	"episodereel/internal/testsupport"
)

func TestDecodeSolidJPEG(t *testing.T) {
	frame, err := frames.Decode(testsupport.SolidJPEG(t, 24, 120))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if frame.Width != 24 || frame.Height != 24 {
		t.Fatalf("unexpected size %dx%d", frame.Width, frame.Height)
	}
	if len(frame.Pix) != frame.Size() || frame.Size() != 24*24*3 {
		t.Fatalf("unexpected pixel buffer length %d", len(frame.Pix))
	}
	if !testsupport.NearLevel(frame.Pix, 120, 3) {
		t.Fatalf("decoded pixels drifted from level 120: % x", frame.Pix[:9])
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for name, payload := range map[string][]byte{
		"empty":   nil,
		"garbage": []byte("definitely not an image"),
		"cut":     testsupport.SolidJPEG(t, 16, 10)[:20],
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := frames.Decode(payload); !errors.Is(err, services.ErrDecode) {
				t.Fatalf("expected ErrDecode, got %v", err)
			}
		})
	}
}

func TestFromImageDropsAlphaAndKeepsOrder(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 1, G: 2, B: 3, A: 0xFF})
	img.SetNRGBA(1, 0, color.NRGBA{R: 4, G: 5, B: 6, A: 0xFF})

	frame := frames.FromImage(img)
	want := []byte{1, 2, 3, 4, 5, 6}
	if string(frame.Pix) != string(want) {
		t.Fatalf("Pix = %v, want %v", frame.Pix, want)
	}

	back := frame.Image()
	if got := back.NRGBAAt(1, 0); got != (color.NRGBA{R: 4, G: 5, B: 6, A: 0xFF}) {
		t.Fatalf("round trip pixel = %v", got)
	}
}

func TestResize(t *testing.T) {
	frame, err := frames.Decode(testsupport.SolidJPEG(t, 32, 200))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	resized := frames.Resize(frame, 8)
	if resized.Width != 8 || resized.Height != 8 || len(resized.Pix) != 8*8*3 {
		t.Fatalf("unexpected resized frame %dx%d (%d bytes)", resized.Width, resized.Height, len(resized.Pix))
	}
	if !testsupport.NearLevel(resized.Pix, 200, 4) {
		t.Fatalf("resized solid frame drifted: % x", resized.Pix[:9])
	}

	if same := frames.Resize(frame, 0); same.Width != 32 {
		t.Fatalf("size 0 should keep native width, got %d", same.Width)
	}
}
