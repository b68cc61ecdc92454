package screen

import (
	"bytes"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spitest"
)

func litPixels(s *Screen) int {
	s.imageMu.Lock()
	defer s.imageMu.Unlock()
	var n int
	b := s.image.Bounds()
	for x := b.Min.X; x < b.Max.X; x++ {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			if s.image.NRGBAAt(x, y) == onColor {
				n++
			}
		}
	}
	return n
}

func TestShow(t *testing.T) {
	s, err := NewScreen(nil)
	if err != nil {
		t.Fatalf("new screen: %v", err)
	}
	if got := litPixels(s); got != 0 {
		t.Errorf("lit pixels on a new screen:\n  got: %v\n want: 0", got)
	}

	testData := []struct {
		in   int
		want string
	}{
		{815, "0815"},
		{0, "0000"},
		{2359, "2359"},
		{-4, "0000"},
		{12345, "9999"},
	}
	for _, test := range testData {
		if err := s.Show(test.in); err != nil {
			t.Fatalf("show %d: %v", test.in, err)
		}
		if got, want := s.Text(), test.want; got != want {
			t.Errorf("show %d:\n  got: %v\n want: %v", test.in, got, want)
		}
	}
	if got := litPixels(s); got == 0 {
		t.Errorf("no lit pixels after showing 9999")
	}

	if err := s.Blank(); err != nil {
		t.Fatalf("blank: %v", err)
	}
	if got, want := s.Text(), ""; got != want {
		t.Errorf("text after blank:\n  got: %q\n want: %q", got, want)
	}
	if got := litPixels(s); got != 0 {
		t.Errorf("lit pixels after blank:\n  got: %v\n want: 0", got)
	}
}

func TestServeHTTP(t *testing.T) {
	s, err := NewScreen(nil)
	if err != nil {
		t.Fatalf("new screen: %v", err)
	}
	if err := s.Show(1200); err != nil {
		t.Fatalf("show: %v", err)
	}
	req := httptest.NewRequest("GET", "/display.png", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if got, want := rec.Code, http.StatusOK; got != want {
		t.Errorf("response code:\n  got: %v\n want: %v", got, want)
	}
	if got, want := rec.Header().Get("content-type"), "image/png"; got != want {
		t.Errorf("content type:\n  got: %v\n want: %v", got, want)
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if got, want := img.Bounds(), s.image.Bounds(); got != want {
		t.Errorf("image size:\n  got: %v\n want: %v", got, want)
	}
}

// decodePort is an SPI port that fails every write to the MAX7219 decode-mode register.
type decodePort struct{}

func (decodePort) String() string { return "decode-port" }

func (decodePort) LimitSpeed(f physic.Frequency) error { return nil }

func (decodePort) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	return decodeConn{}, nil
}

type decodeConn struct{}

func (decodeConn) String() string { return "decode-conn" }

func (decodeConn) Duplex() conn.Duplex { return conn.Half }

func (decodeConn) TxPackets(p []spi.Packet) error { return errors.New("not implemented") }

func (decodeConn) Tx(w, r []byte) error {
	if len(w) > 0 && w[0] == 0x09 {
		return errors.New("spi write failed")
	}
	return nil
}

func TestMirror(t *testing.T) {
	port := new(spitest.Record)
	s, err := NewScreen(port)
	if err != nil {
		t.Fatalf("new screen: %v", err)
	}
	var sawDecode bool
	for _, op := range port.Ops {
		if bytes.Equal(op.W, []byte{0x09, 0xff}) {
			sawDecode = true
		}
	}
	if !sawDecode {
		t.Errorf("max7219 never put in code B decode mode; writes: %v", port.Ops)
	}
	before := len(port.Ops)
	if err := s.Show(1234); err != nil {
		t.Fatalf("show: %v", err)
	}
	if len(port.Ops) == before {
		t.Errorf("show did not write to the max7219")
	}
	if got, want := s.Text(), "1234"; got != want {
		t.Errorf("text:\n  got: %v\n want: %v", got, want)
	}
}

func TestMirrorDecodeFailure(t *testing.T) {
	if _, err := NewScreen(decodePort{}); err == nil {
		t.Errorf("new screen with a failing decode-mode write succeeded")
	}
}
