package sslcommerz

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
	"testing"
)

// signForm computes the verify_sign SSLCommerz would attach to a callback
// carrying the given fields.
func signForm(storePasswd string, form map[string]string, keys []string) string {
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	pairs := make([]string, 0, len(sorted)+1)
	for _, k := range sorted {
		pairs = append(pairs, k+"="+form[k])
	}
	hashedPasswd := md5.Sum([]byte(storePasswd))
	pairs = append(pairs, "store_passwd="+hex.EncodeToString(hashedPasswd[:]))

	sum := md5.Sum([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(sum[:])
}

func TestVerifyWebhookSignature(t *testing.T) {
	client := NewClient("teststore", "teststore@ssl", true)

	form := map[string]string{
		"tran_id":    "PAY-ORD-20260315-A1B2C-0-DEADBEEF",
		"val_id":     "2603151230121abcdef",
		"amount":     "9000.00",
		"status":     "VALID",
		"verify_key": "amount,status,tran_id,val_id",
	}
	form["verify_sign"] = signForm("teststore@ssl", form, []string{"tran_id", "val_id", "amount", "status"})

	if !client.VerifyWebhookSignature(form) {
		t.Error("valid signature rejected")
	}

	// Uppercase signatures are accepted; the gateway is inconsistent here.
	upper := make(map[string]string, len(form))
	for k, v := range form {
		upper[k] = v
	}
	upper["verify_sign"] = strings.ToUpper(upper["verify_sign"])
	if !client.VerifyWebhookSignature(upper) {
		t.Error("uppercase signature rejected")
	}
}

func TestVerifyWebhookSignatureRejects(t *testing.T) {
	client := NewClient("teststore", "teststore@ssl", true)

	base := map[string]string{
		"tran_id":    "PAY-ORD-20260315-A1B2C-0-DEADBEEF",
		"amount":     "9000.00",
		"verify_key": "amount,tran_id",
	}
	base["verify_sign"] = signForm("teststore@ssl", base, []string{"tran_id", "amount"})

	tampered := map[string]string{
		"tran_id":     base["tran_id"],
		"amount":      "1.00",
		"verify_key":  base["verify_key"],
		"verify_sign": base["verify_sign"],
	}
	if client.VerifyWebhookSignature(tampered) {
		t.Error("tampered amount accepted")
	}

	wrongPasswd := NewClient("teststore", "otherpassword", true)
	if wrongPasswd.VerifyWebhookSignature(base) {
		t.Error("signature accepted with the wrong store password")
	}

	missing := map[string]string{"tran_id": "x"}
	if client.VerifyWebhookSignature(missing) {
		t.Error("form without verify fields accepted")
	}
}

func TestValidationResponseVerified(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{"VALID", true},
		{"VALIDATED", true},
		{"INVALID", false},
		{"FAILED", false},
		{"", false},
	}

	for _, tt := range tests {
		v := ValidationResponse{Status: tt.status}
		if got := v.Verified(); got != tt.want {
			t.Errorf("Verified with status %q: got %t, want %t", tt.status, got, tt.want)
		}
	}
}

func TestClientEndpoints(t *testing.T) {
	sandbox := NewClient("s", "p", true)
	if !strings.Contains(sandbox.initURL(), "sandbox.sslcommerz.com") {
		t.Errorf("sandbox init URL: got %s", sandbox.initURL())
	}
	if !strings.Contains(sandbox.validateURL(), "sandbox.sslcommerz.com") {
		t.Errorf("sandbox validate URL: got %s", sandbox.validateURL())
	}

	live := NewClient("s", "p", false)
	if !strings.Contains(live.initURL(), "securepay.sslcommerz.com") {
		t.Errorf("live init URL: got %s", live.initURL())
	}
	if !strings.Contains(live.validateURL(), "securepay.sslcommerz.com") {
		t.Errorf("live validate URL: got %s", live.validateURL())
	}
}
