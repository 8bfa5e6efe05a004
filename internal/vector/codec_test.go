package vector

import (
	"bytes"
	"testing"
)

func TestBlobRoundTrip(t *testing.T) {
	in := []float32{0.5, -1.25, 3.75, 0}
	out, err := DecodeBlob(EncodeBlob(in))
	if err != nil {
		t.Fatalf("DecodeBlob: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestEncodeBlobLittleEndian(t *testing.T) {
	got := EncodeBlob([]float32{1.0}) // 0x3F800000
	want := []byte{0x00, 0x00, 0x80, 0x3F}
	if !bytes.Equal(got, want) {
		t.Errorf("blob = %x, want %x", got, want)
	}
}

func TestDecodeBlobRejectsRaggedLength(t *testing.T) {
	if _, err := DecodeBlob([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for length 3")
	}
}

func TestEmptyBlob(t *testing.T) {
	out, err := DecodeBlob(EncodeBlob(nil))
	if err != nil {
		t.Fatalf("DecodeBlob: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("len = %d, want 0", len(out))
	}
}
