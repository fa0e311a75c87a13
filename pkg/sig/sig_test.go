package sig_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/norflash/fwupdate/pkg/sig"
)

func TestMultipartVerifierAcceptsGenuineSignatureWholeMessage(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	message := []byte("firmware image bytes, fragment 0 through N")
	signature := ed25519.Sign(priv, message)

	v, err := sig.NewMultipartVerifier(signature, pub)
	if err != nil {
		t.Fatal(err)
	}
	v.Write(message)
	if !v.End() {
		t.Fatal("expected genuine signature to verify")
	}
}

func TestMultipartVerifierAcceptsChunkedMessage(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	part1 := []byte("first fragment body......")
	part2 := []byte("second fragment body.....")
	message := append(append([]byte{}, part1...), part2...)
	signature := ed25519.Sign(priv, message)

	v, err := sig.NewMultipartVerifier(signature, pub)
	if err != nil {
		t.Fatal(err)
	}
	v.Write(part1)
	v.Write(part2)
	if !v.End() {
		t.Fatal("expected chunked write to match whole-message signature")
	}
}

func TestMultipartVerifierRejectsTamperedMessage(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	message := []byte("original bytes")
	signature := ed25519.Sign(priv, message)

	v, err := sig.NewMultipartVerifier(signature, pub)
	if err != nil {
		t.Fatal(err)
	}
	v.Write([]byte("tampered bytes"))
	if v.End() {
		t.Fatal("expected tampered message to fail verification")
	}
}

func TestMultipartVerifierRejectsBadLengths(t *testing.T) {
	if _, err := sig.NewMultipartVerifier(make([]byte, 10), make([]byte, 32)); err == nil {
		t.Fatal("expected error for short signature")
	}
	if _, err := sig.NewMultipartVerifier(make([]byte, 64), make([]byte, 10)); err == nil {
		t.Fatal("expected error for short public key")
	}
}

func TestVerifyFragmentsEd25519MatchesStdlib(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	frags := [][]byte{[]byte("aaa"), []byte("bbb"), []byte("ccc")}
	var whole []byte
	for _, f := range frags {
		whole = append(whole, f...)
	}
	signature := ed25519.Sign(priv, whole)

	ok, err := sig.VerifyFragmentsEd25519(signature, pub, frags)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected fragmented verification to match stdlib signature")
	}
}

func TestChainHashDeterministic(t *testing.T) {
	prev := make([]byte, 64)
	body := []byte("fragment bytes excluding sha512")

	h1 := sig.ChainHash(prev, body)
	h2 := sig.ChainHash(prev, body)
	if h1 != h2 {
		t.Fatal("ChainHash should be deterministic")
	}
	if !sig.VerifyChainLink(prev, body, h1[:]) {
		t.Fatal("VerifyChainLink should accept the hash it computed")
	}
}

func TestChainHashDiffersOnTamperedBody(t *testing.T) {
	prev := make([]byte, 64)
	h1 := sig.ChainHash(prev, []byte("body A"))
	h2 := sig.ChainHash(prev, []byte("body B"))
	if h1 == h2 {
		t.Fatal("expected different bodies to produce different chain hashes")
	}
}
