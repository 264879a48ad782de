package application

import (
	"errors"
	"strings"
	"testing"
)

func TestPasswordHashing(t *testing.T) {
	t.Parallel()

	params := Argon2idParams{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	hash, err := CreatePasswordHash("correct horse", params)
	if err != nil {
		t.Fatalf("CreatePasswordHash failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected encoding %q", hash)
	}

	if err := VerifyPassword(hash, "correct horse"); err != nil {
		t.Fatalf("expected password to verify, got %v", err)
	}
	if err := VerifyPassword(hash, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	other, _ := CreatePasswordHash("correct horse", params)
	if other == hash {
		t.Fatalf("expected a fresh salt per hash")
	}
}

func TestVerifyPassword_MalformedHashes(t *testing.T) {
	t.Parallel()

	cases := map[string]error{
		"plain":                            ErrInvalidPasswordHash,
		"$bcrypt$v=19$m=1,t=1,p=1$aa$bb":   ErrInvalidPasswordHash,
		"$argon2id$v=18$m=1,t=1,p=1$aa$bb": ErrIncompatiblePasswordVersion,
		"$argon2id$v=19$m=x,t=1,p=1$aa$bb": ErrInvalidPasswordHash,
		"$argon2id$v=19$m=1,t=1,p=1$!!$bb": ErrInvalidPasswordHash,
	}
	for hash, want := range cases {
		if err := VerifyPassword(hash, "secret"); !errors.Is(err, want) {
			t.Fatalf("VerifyPassword(%q) = %v, want %v", hash, err, want)
		}
	}
}
