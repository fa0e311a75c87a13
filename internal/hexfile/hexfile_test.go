package hexfile_test

import (
	"bytes"
	"testing"

	"github.com/norflash/fwupdate/internal/hexfile"
)

func TestRoundTripSingleSection(t *testing.T) {
	f := &hexfile.File{
		Sections: []hexfile.Section{
			{StartAddress: 0x08000000, Data: []byte("hello, firmware world, this is a test payload!!")},
		},
	}
	f.SetStartLinearAddress(0x08000000)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}

	parsed, err := hexfile.Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !parsed.HasStartLinearAddress() || parsed.StartLinearAddress != 0x08000000 {
		t.Fatalf("start linear address not round-tripped: %+v", parsed)
	}

	addr, data := parsed.Flatten()
	if addr != 0x08000000 {
		t.Fatalf("start address = 0x%x", addr)
	}
	if string(data) != "hello, firmware world, this is a test payload!!" {
		t.Fatalf("data = %q", data)
	}
}

func TestRoundTripCrossesExtendedLinearBoundary(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 40)
	f := &hexfile.File{
		Sections: []hexfile.Section{
			{StartAddress: 0x0000FFF0, Data: data},
		},
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}

	parsed, err := hexfile.Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	_, got := parsed.Flatten()
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip mismatch across 64K boundary: got %d bytes, want %d", len(got), len(data))
	}
}

func TestReadRejectsBadChecksum(t *testing.T) {
	bad := ":04000000DEADBEEF00\n:00000001FF\n"
	if _, err := hexfile.Read(bytes.NewBufferString(bad)); err == nil {
		t.Fatal("expected checksum error")
	}
}

func TestReadRejectsMissingColon(t *testing.T) {
	bad := "0400000000000000FC\n:00000001FF\n"
	if _, err := hexfile.Read(bytes.NewBufferString(bad)); err == nil {
		t.Fatal("expected missing ':' error")
	}
}
