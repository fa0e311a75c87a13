package validate_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/norflash/fwupdate/pkg/firmware"
	"github.com/norflash/fwupdate/pkg/flash"
	"github.com/norflash/fwupdate/pkg/fragmentstore"
	"github.com/norflash/fwupdate/pkg/sig"
	"github.com/norflash/fwupdate/pkg/validate"
)

const magic = "_M_E_T_A_D_A_T_A"

func newArea(t *testing.T, v *validate.Validator) *fragmentstore.Area {
	t.Helper()
	dev := flash.NewSimDevice(64*1024, 4096, 0xFF)
	region := &flash.RegionConfig{
		Device:      dev,
		BaseAddress: 0,
		SectorSize:  4096,
		RegionSize:  64 * 1024,
		EraseValue:  0xFF,
	}
	area, result := fragmentstore.New(region, v.ValidateFragment, v.ValidateMetadata)
	if result != fragmentstore.ResultOK {
		t.Fatalf("fragmentstore.New: %v", result)
	}
	v.Bind(area)
	return area
}

func signedMetadata(t *testing.T, priv ed25519.PrivateKey, firmwareID uint32) *firmware.Metadata {
	t.Helper()
	m := &firmware.Metadata{FirmwareID: firmwareID}
	copy(m.Magic[:], magic)
	signed := m.SignedBytes()
	s := sig.Sign(priv, signed)
	copy(m.MetadataSignature[:], s)
	return m
}

func TestValidateMetadataAcceptsGenuineRecord(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(rand.Reader)
	v := validate.NewValidator(pub, []byte(magic))
	newArea(t, v)

	m := signedMetadata(t, priv, 1)
	if !v.ValidateMetadata(m) {
		t.Fatal("expected genuine metadata to validate")
	}
}

func TestValidateMetadataRejectsWrongMagic(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(rand.Reader)
	v := validate.NewValidator(pub, []byte(magic))
	newArea(t, v)

	m := signedMetadata(t, priv, 1)
	m.Magic[0] ^= 0xFF
	if v.ValidateMetadata(m) {
		t.Fatal("expected corrupted magic to be rejected")
	}
}

func TestValidateFragmentEd25519(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(rand.Reader)
	v := validate.NewValidator(pub, []byte(magic))
	newArea(t, v)

	f := &firmware.Fragment{FirmwareID: 1, Number: 0, VerifyMethod: firmware.VerifyEd25519}
	copy(f.Content[:4], []byte("body"))
	s := sig.Sign(priv, f.SignedBytes())
	copy(f.Signature[:], s)

	if !v.ValidateFragment(f) {
		t.Fatal("expected genuine fragment signature to validate")
	}

	f.Content[0] ^= 0xFF
	if v.ValidateFragment(f) {
		t.Fatal("expected tampered fragment content to be rejected")
	}
}

func TestValidateFragmentHashChainFromMetadata(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(rand.Reader)
	v := validate.NewValidator(pub, []byte(magic))
	area := newArea(t, v)

	m := signedMetadata(t, priv, 1)
	if result := area.WriteMetadata(m); result != fragmentstore.ResultOK {
		t.Fatalf("WriteMetadata: %v", result)
	}

	f0 := &firmware.Fragment{FirmwareID: 1, Number: 0, VerifyMethod: firmware.VerifyHashChain}
	copy(f0.Content[:4], []byte("body"))
	chain0 := sig.ChainHash(m.MetadataSignature[:], f0.HashChainBytes())
	f0.SHA512 = chain0

	if !v.ValidateFragment(f0) {
		t.Fatal("expected fragment 0 chained from metadata_signature to validate")
	}

	if result := area.WriteFragment(0, f0); result != fragmentstore.ResultOK {
		t.Fatalf("WriteFragment(0): %v", result)
	}

	f1 := &firmware.Fragment{FirmwareID: 1, Number: 1, VerifyMethod: firmware.VerifyHashChain}
	copy(f1.Content[:4], []byte("next"))
	chain1 := sig.ChainHash(f0.SHA512[:], f1.HashChainBytes())
	f1.SHA512 = chain1

	if !v.ValidateFragment(f1) {
		t.Fatal("expected fragment 1 chained from fragment 0 to validate")
	}
}

func TestValidateFragmentHashChainRejectsBrokenLink(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(rand.Reader)
	v := validate.NewValidator(pub, []byte(magic))
	area := newArea(t, v)

	m := signedMetadata(t, priv, 1)
	if result := area.WriteMetadata(m); result != fragmentstore.ResultOK {
		t.Fatalf("WriteMetadata: %v", result)
	}

	f0 := &firmware.Fragment{FirmwareID: 1, Number: 0, VerifyMethod: firmware.VerifyHashChain}
	copy(f0.Content[:4], []byte("body"))
	var wrongSeed [64]byte
	f0.SHA512 = sig.ChainHash(wrongSeed[:], f0.HashChainBytes())

	if v.ValidateFragment(f0) {
		t.Fatal("expected fragment chained from the wrong seed to be rejected")
	}
}
