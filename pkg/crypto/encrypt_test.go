package crypto

import (
	"errors"
	"testing"
)

// TestEncryptDecrypt_RoundTrip проверяет цикл шифрование-расшифровка
func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}

	plaintext := "bybit-api-key-value"

	ciphertext, err := Encrypt(plaintext, key)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if ciphertext == plaintext {
		t.Fatal("ciphertext equals plaintext")
	}

	got, err := Decrypt(ciphertext, key)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if got != plaintext {
		t.Errorf("Decrypt() = %q, want %q", got, plaintext)
	}
}

// TestEncrypt_InvalidKeyLength проверяет отказ при ключе неверной длины
func TestEncrypt_InvalidKeyLength(t *testing.T) {
	_, err := Encrypt("secret", []byte("short-key"))
	if !errors.Is(err, ErrInvalidKeyLength) {
		t.Errorf("Encrypt() error = %v, want ErrInvalidKeyLength", err)
	}
}

// TestDecrypt_WrongKey: расшифровка чужим ключом даёт ошибку аутентификации
func TestDecrypt_WrongKey(t *testing.T) {
	key1, _ := GenerateKey()
	key2, _ := GenerateKey()

	ciphertext, err := Encrypt("secret", key1)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	_, err = Decrypt(ciphertext, key2)
	if !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("Decrypt() error = %v, want ErrDecryptionFailed", err)
	}
}

// TestDecrypt_GarbageInput проверяет обработку некорректного ciphertext
func TestDecrypt_GarbageInput(t *testing.T) {
	key, _ := GenerateKey()

	if _, err := Decrypt("not-base64!!!", key); err == nil {
		t.Error("Decrypt(garbage) error = nil, want error")
	}
	if _, err := Decrypt("dG9vc2hvcnQ=", key); err == nil {
		t.Error("Decrypt(too short) error = nil, want error")
	}
}

// TestValidateKey проверяет валидацию длины ключа
func TestValidateKey(t *testing.T) {
	key, _ := GenerateKey()
	if err := ValidateKey(key); err != nil {
		t.Errorf("ValidateKey(32 bytes) error = %v, want nil", err)
	}
	if err := ValidateKey([]byte("short")); !errors.Is(err, ErrInvalidKeyLength) {
		t.Errorf("ValidateKey(short) error = %v, want ErrInvalidKeyLength", err)
	}
}
