package crypto

import (
	"errors"
	"strings"
	"testing"
)

// TestHashPassword_VerifyRoundTrip проверяет хеширование и проверку пароля
func TestHashPassword_VerifyRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	if err := VerifyPassword("correct-horse", hash); err != nil {
		t.Errorf("VerifyPassword(correct) error = %v, want nil", err)
	}
	if err := VerifyPassword("wrong-password", hash); !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("VerifyPassword(wrong) error = %v, want ErrPasswordMismatch", err)
	}
}

// TestHashPassword_Validation проверяет граничные случаи
func TestHashPassword_Validation(t *testing.T) {
	if _, err := HashPassword(""); !errors.Is(err, ErrEmptyPassword) {
		t.Errorf("HashPassword(empty) error = %v, want ErrEmptyPassword", err)
	}
	if _, err := HashPassword(strings.Repeat("a", 73)); !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("HashPassword(73 bytes) error = %v, want ErrPasswordTooLong", err)
	}
}

// TestVerifyPassword_InvalidHash проверяет обработку битого хеша
func TestVerifyPassword_InvalidHash(t *testing.T) {
	if err := VerifyPassword("password", "not-a-bcrypt-hash"); !errors.Is(err, ErrInvalidHash) {
		t.Errorf("VerifyPassword(bad hash) error = %v, want ErrInvalidHash", err)
	}
	if err := VerifyPassword("password", ""); !errors.Is(err, ErrInvalidHash) {
		t.Errorf("VerifyPassword(empty hash) error = %v, want ErrInvalidHash", err)
	}
}

// TestCheckPasswordMatch проверяет bool-обёртку
func TestCheckPasswordMatch(t *testing.T) {
	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	if !CheckPasswordMatch("secret", hash) {
		t.Error("CheckPasswordMatch(correct) = false, want true")
	}
	if CheckPasswordMatch("other", hash) {
		t.Error("CheckPasswordMatch(wrong) = true, want false")
	}
}
