package catalog

import "testing"

func TestMetafieldLastWriteWins(t *testing.T) {
	p := Product{
		ID: "gid://shopify/Product/1",
		Metafields: []Metafield{
			{ID: "a", Key: "badges", Value: `["Sale"]`},
			{ID: "b", Key: "expiration_time", Value: "2020-01-01"},
			{ID: "c", Key: "badges", Value: `["New In"]`},
		},
	}
	mf, ok := p.Metafield("badges")
	if !ok {
		t.Fatalf("expected badges entry")
	}
	if mf.ID != "c" || mf.Value != `["New In"]` {
		t.Fatalf("expected last badges entry, got %+v", mf)
	}
	if _, ok := p.Metafield("missing"); ok {
		t.Fatalf("expected missing key to report false")
	}
}

func TestGlobalIDRoundTrip(t *testing.T) {
	if got := ProductGID(42); got != "gid://shopify/Product/42" {
		t.Fatalf("unexpected product gid %s", got)
	}
	if got := MetafieldGID(7); got != "gid://shopify/Metafield/7" {
		t.Fatalf("unexpected metafield gid %s", got)
	}
	id, ok := LegacyIDFromGID("gid://shopify/Product/42")
	if !ok || id != 42 {
		t.Fatalf("expected 42, got %d (%v)", id, ok)
	}
}

func TestLegacyIDFromGIDRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "gid://shopify/Product/", "gid://shopify/Product/abc", "no-slash", "gid://shopify/Product/-3"} {
		if _, ok := LegacyIDFromGID(in); ok {
			t.Fatalf("expected %q to be rejected", in)
		}
	}
}
