package utils

import (
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"
)

type sampleInput struct {
	Name   string `validate:"required"`
	Amount int    `validate:"gt=0"`
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ""},
		{"app error", NewStateConflict("already audited"), KindStateConflict},
		{"wrapped app error", fmt.Errorf("audit: %w", NewAppError(KindInsufficientStock, "short")), KindInsufficientStock},
		{"gorm not found", gorm.ErrRecordNotFound, KindNotFound},
		{"record not found", fmt.Errorf("order 3: %w", ErrorRecordNotFound), KindNotFound},
		{"plain error", errors.New("connection reset"), KindUnrecoverable},
		{"validation", ValidateInput(&sampleInput{}), KindValidation},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Fatalf("%s: KindOf = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestErrorsIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("sale stock out: %w", NewAppError(KindInsufficientStock, "only 2 of sku 4 left"))
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected errors.Is to match the kind sentinel")
	}
	if errors.Is(err, ErrExceedsBalance) {
		t.Fatalf("different kinds must not match")
	}
	if !errors.Is(NewNotFound("order", 3), ErrorRecordNotFound) {
		t.Fatalf("NewNotFound should wrap ErrorRecordNotFound")
	}
}

func TestPublicMessage(t *testing.T) {
	if got := PublicMessage(errors.New("dial tcp: timeout")); got != "internal error" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := PublicMessage(Unrecoverable(errors.New("deadlock"))); got != "internal error" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := PublicMessage(gorm.ErrRecordNotFound); got != ErrorRecordNotFound.Error() {
		t.Fatalf("unexpected message %q", got)
	}
	if got := PublicMessage(NewNotFound("sku", 9)); got != "sku 9 not found" {
		t.Fatalf("unexpected message %q", got)
	}
	msg := PublicMessage(ValidateInput(&sampleInput{Name: "x"}))
	if msg != "invalid input (Amount: gt)" {
		t.Fatalf("unexpected validation message %q", msg)
	}
}
