package crypto

import (
	"testing"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	enc, err := NewEncryptor([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewEncryptor() error = %v", err)
	}

	tests := []struct {
		name      string
		plaintext string
	}{
		{"oauth token", "ya29.a0AfH6SMB-example-token"},
		{"unicode", "토큰 데이터"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ciphertext, err := enc.Encrypt(tt.plaintext)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if tt.plaintext != "" && ciphertext == tt.plaintext {
				t.Error("ciphertext equals plaintext")
			}

			decrypted, err := enc.Decrypt(ciphertext)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if decrypted != tt.plaintext {
				t.Errorf("Decrypt() = %q, want %q", decrypted, tt.plaintext)
			}
		})
	}
}

func TestNewEncryptor_ShortKeyDerived(t *testing.T) {
	// 32바이트가 아닌 키는 SHA-256으로 파생된다
	enc, err := NewEncryptor([]byte("short"))
	if err != nil {
		t.Fatalf("NewEncryptor() error = %v", err)
	}

	ciphertext, err := enc.Encrypt("data")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	decrypted, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if decrypted != "data" {
		t.Errorf("Decrypt() = %q, want %q", decrypted, "data")
	}
}

func TestDecrypt_Invalid(t *testing.T) {
	enc, err := NewEncryptor([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		ciphertext string
	}{
		{"not base64", "!!!"},
		{"too short", "YWJj"}, // "abc"
		{"tampered", func() string {
			c, _ := enc.Encrypt("secret")
			return c[:len(c)-4] + "AAAA"
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := enc.Decrypt(tt.ciphertext); err == nil {
				t.Errorf("Decrypt(%q) expected error", tt.ciphertext)
			}
		})
	}
}

func TestIsEncrypted(t *testing.T) {
	enc, err := NewEncryptor([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatal(err)
	}

	ciphertext, err := enc.Encrypt("some token")
	if err != nil {
		t.Fatal(err)
	}

	if !IsEncrypted(ciphertext) {
		t.Error("IsEncrypted(ciphertext) = false, want true")
	}
	if IsEncrypted("plain-token") {
		t.Error("IsEncrypted(plain) = true, want false")
	}
	if IsEncrypted("") {
		t.Error("IsEncrypted(empty) = true, want false")
	}
}
