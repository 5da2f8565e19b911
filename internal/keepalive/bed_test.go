package keepalive

import "testing"

func TestSilentLoopRead(t *testing.T) {
	buf := make([]byte, 9)
	n, err := silentLoop{}.Read(buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	// Frames are whole PCM16 samples, so an odd buffer fills 8 bytes.
	if n != 8 {
		t.Errorf("Read() n = %d, want 8", n)
	}
	for i := 0; i+1 < n; i += 2 {
		if buf[i] != 1 || buf[i+1] != 0 {
			t.Fatalf("sample %d = [%d %d], want [1 0]", i/2, buf[i], buf[i+1])
		}
	}
}

func TestNilBedMethods(t *testing.T) {
	var b *OtoBed
	b.Play()
	b.Pause()
	b.Close()
}
