package backpack

import "testing"

func TestSignMessageCanonicalOrder(t *testing.T) {
	params := map[string]string{
		"symbol":    "SOL_USDC_PERP",
		"side":      "Bid",
		"orderType": "Limit",
	}
	got := signMessage("orderExecute", params, "1700000000000", "5000")
	want := "instruction=orderExecute&orderType=Limit&side=Bid&symbol=SOL_USDC_PERP&timestamp=1700000000000&window=5000"
	if got != want {
		t.Errorf("signMessage =\n%s\nwant\n%s", got, want)
	}
}

func TestSignMessageNoParams(t *testing.T) {
	got := signMessage("balanceQuery", nil, "1700000000000", "5000")
	want := "instruction=balanceQuery&timestamp=1700000000000&window=5000"
	if got != want {
		t.Errorf("signMessage = %s, want %s", got, want)
	}
}

func TestSignDeterministic(t *testing.T) {
	creds := NewCredentials("key", "secret")

	a := creds.Sign("instruction=balanceQuery&timestamp=1&window=5000")
	b := creds.Sign("instruction=balanceQuery&timestamp=1&window=5000")
	if a != b {
		t.Error("same message must produce same signature")
	}
	if len(a) != 64 {
		t.Errorf("hex sha256 signature must be 64 chars, got %d", len(a))
	}

	other := NewCredentials("key", "other-secret")
	if other.Sign("instruction=balanceQuery&timestamp=1&window=5000") == a {
		t.Error("different secrets must produce different signatures")
	}
}
