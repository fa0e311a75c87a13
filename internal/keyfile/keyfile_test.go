package keyfile_test

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"path/filepath"
	"testing"

	"github.com/norflash/fwupdate/internal/keyfile"
)

func TestSaveAndLoadUnencryptedPrivateKey(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	privPath := filepath.Join(dir, "id_ed25519")
	pubPath := filepath.Join(dir, "id_ed25519.pub")

	if err := keyfile.SavePrivateKey(privPath, priv, nil); err != nil {
		t.Fatalf("SavePrivateKey: %v", err)
	}
	if err := keyfile.SavePublicKey(pubPath, pub); err != nil {
		t.Fatalf("SavePublicKey: %v", err)
	}

	loadedPriv, err := keyfile.LoadPrivateKey(privPath, nil)
	if err != nil {
		t.Fatalf("LoadPrivateKey: %v", err)
	}
	if !bytes.Equal(loadedPriv, priv) {
		t.Fatal("loaded private key does not match original")
	}

	loadedPub, err := keyfile.LoadPublicKey(pubPath)
	if err != nil {
		t.Fatalf("LoadPublicKey: %v", err)
	}
	if !bytes.Equal(loadedPub, pub) {
		t.Fatal("loaded public key does not match original")
	}
}

func TestSaveAndLoadEncryptedPrivateKey(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	privPath := filepath.Join(dir, "id_ed25519")
	passphrase := []byte("correct horse battery staple")

	if err := keyfile.SavePrivateKey(privPath, priv, passphrase); err != nil {
		t.Fatalf("SavePrivateKey: %v", err)
	}

	if _, err := keyfile.LoadPrivateKey(privPath, nil); err == nil {
		t.Fatal("expected LoadPrivateKey with nil prompt to fail on encrypted key")
	}

	prompted := false
	loaded, err := keyfile.LoadPrivateKey(privPath, func() ([]byte, error) {
		prompted = true
		return passphrase, nil
	})
	if err != nil {
		t.Fatalf("LoadPrivateKey with passphrase: %v", err)
	}
	if !prompted {
		t.Fatal("expected passphrase prompt to be invoked")
	}
	if !bytes.Equal(loaded, priv) {
		t.Fatal("decrypted private key does not match original")
	}
}

func TestSavePublicKeyRejectsWrongSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.pub")
	if err := keyfile.SavePublicKey(path, make([]byte, 31)); err == nil {
		t.Fatal("expected SavePublicKey to reject a 31-byte key")
	}
}
