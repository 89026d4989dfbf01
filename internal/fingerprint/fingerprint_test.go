package fingerprint

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"already canonical", "device-aaa111", "device-aaa111"},
		{"uppercase", "DEVICE-AAA111", "device-aaa111"},
		{"surrounding whitespace", "  device-aaa111\t\n", "device-aaa111"},
		{"mixed separators", "Device:AAA/111!!", "deviceaaa111"},
		{"underscores kept", "mac_00-1A-2B-3C-4D-5E", "mac_00-1a-2b-3c-4d-5e"},
		{"unicode stripped", "дevice-aaa111", "evice-aaa111"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.in)
			if err != nil {
				t.Fatalf("Normalize(%q) returned error: %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalize_Errors(t *testing.T) {
	t.Parallel()

	// Only a truly empty input is Empty.
	if _, err := Normalize(""); !errors.Is(err, ErrEmpty) {
		t.Fatalf("Normalize(\"\"): expected ErrEmpty, got %v", err)
	}
	// Everything that strips down below the minimum, including
	// whitespace-only and punctuation-only inputs, is TooShort.
	for _, in := range []string{"   ", "\t\n", "!!!///:::", "a", "abc1234", "AB-12!"} {
		if _, err := Normalize(in); !errors.Is(err, ErrTooShort) {
			t.Fatalf("Normalize(%q): expected ErrTooShort, got %v", in, err)
		}
	}
}

func TestNormalize_TruncatesLongInput(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", 300)
	got, err := Normalize(long)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if len(got) != MaxLength {
		t.Fatalf("expected truncation to %d, got %d", MaxLength, len(got))
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{"device-aaa111", "  Device AAA-111  ", "MAC:00-1A-2B-3C-4D-5E", strings.Repeat("Zz", 200)}
	for _, in := range inputs {
		once, err := Normalize(in)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", in, err)
		}
		twice, err := Normalize(once)
		if err != nil {
			t.Fatalf("Normalize(Normalize(%q)): %v", in, err)
		}
		if once != twice {
			t.Fatalf("not idempotent for %q: %q vs %q", in, once, twice)
		}
	}
}

func TestNormalize_EquivalentInputsCollide(t *testing.T) {
	t.Parallel()

	variants := []string{"device-aaa111", " DEVICE-AAA111 ", "Device-AAA111!!", "\tdevice-AAA111\n"}
	want, err := Normalize(variants[0])
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	for _, v := range variants[1:] {
		got, err := Normalize(v)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", v, err)
		}
		if got != want {
			t.Fatalf("variant %q normalized to %q, want %q", v, got, want)
		}
	}
}
