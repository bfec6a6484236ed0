package builtin

import (
	"testing"

	"schoolcontacts/internal/contacts"
	"schoolcontacts/internal/transformer"
)

// TestPhone_Apply verifies valid numbers are reformatted and junk is kept.
func TestPhone_Apply(t *testing.T) {
	t.Parallel()

	in := []contacts.Contact{
		{Phone: "+91 98765 43210"},
		{Phone: "Not available"},
		{Phone: ""},
	}

	out := transformer.Chain{Phone{Region: "in"}}.Apply(in)
	if out[0].Phone != "+919876543210" {
		t.Fatalf("Phone[0]=%q", out[0].Phone)
	}
	if out[1].Phone != "Not available" || out[2].Phone != "" {
		t.Fatalf("unparseable values must be kept: %+v", out)
	}
}

// TestPhone_NoRegion verifies the transform is a no-op without a region.
func TestPhone_NoRegion(t *testing.T) {
	t.Parallel()

	in := []contacts.Contact{{Phone: "+91 98765 43210"}}
	out := Phone{}.Apply(in)
	if out[0].Phone != "+91 98765 43210" {
		t.Fatalf("Phone changed without region: %q", out[0].Phone)
	}
}

func TestNormalizePhone(t *testing.T) {
	t.Parallel()

	if got := NormalizePhone("98765 43210", "IN"); got != "+919876543210" {
		t.Fatalf("NormalizePhone=%q", got)
	}
	if got := NormalizePhone("12", "IN"); got != "" {
		t.Fatalf("NormalizePhone(short)=%q, want empty", got)
	}
}
