package wallet

import (
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

// Throwaway key used only in tests.
const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe512961708279f5d3b9f7b4e0756a5a"

func TestAdminSigner_Missing(t *testing.T) {
	km := NewKeyManager("")
	if _, err := km.AdminSigner(); !errors.Is(err, ErrAdminKeyUnavailable) {
		t.Errorf("Expected ErrAdminKeyUnavailable, got %v", err)
	}
}

func TestAdminSigner_Malformed(t *testing.T) {
	km := NewKeyManager("not-a-key")
	if _, err := km.AdminSigner(); !errors.Is(err, ErrAdminKeyUnavailable) {
		t.Errorf("Expected ErrAdminKeyUnavailable, got %v", err)
	}
}

func TestAdminSigner_CachedAcrossCalls(t *testing.T) {
	km := NewKeyManager(testKeyHex)

	first, err := km.AdminSigner()
	if err != nil {
		t.Fatalf("AdminSigner failed: %v", err)
	}
	second, err := km.AdminSigner()
	if err != nil {
		t.Fatalf("AdminSigner failed on second call: %v", err)
	}
	if first != second {
		t.Errorf("Admin signer should be loaded once and cached")
	}
}

func TestUserSigner(t *testing.T) {
	km := NewKeyManager("")

	signer, err := km.UserSigner("0x" + testKeyHex)
	if err != nil {
		t.Fatalf("UserSigner failed: %v", err)
	}
	if signer.Address == (common.Address{}) {
		t.Errorf("Signer address not derived")
	}

	if _, err := km.UserSigner("zz"); !errors.Is(err, ErrInvalidSigningKey) {
		t.Errorf("Expected ErrInvalidSigningKey, got %v", err)
	}
}

func TestSigner_StringRedacted(t *testing.T) {
	km := NewKeyManager(testKeyHex)
	signer, err := km.AdminSigner()
	if err != nil {
		t.Fatalf("AdminSigner failed: %v", err)
	}

	out := signer.String()
	if strings.Contains(strings.ToLower(out), testKeyHex[:16]) {
		t.Errorf("String output leaks key material: %s", out)
	}
	if !strings.Contains(out, signer.Address.Hex()) {
		t.Errorf("String output should carry the address: %s", out)
	}
}
