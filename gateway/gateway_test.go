package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkoutSignature подписывает пару так же, как это делает checkout.
func checkoutSignature(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestRazorpayVerifySignature(t *testing.T) {
	gw, err := NewRazorpayGateway(RazorpayConfig{KeyID: "rzp_test_key", KeySecret: "secret"})
	require.NoError(t, err)
	other, err := NewRazorpayGateway(RazorpayConfig{KeyID: "rzp_test_key", KeySecret: "other"})
	require.NoError(t, err)
	sig := checkoutSignature("order_1", "pay_1", "secret")

	assert.True(t, gw.VerifySignature("order_1", "pay_1", sig))
	assert.False(t, gw.VerifySignature("order_1", "pay_2", sig))
	assert.False(t, other.VerifySignature("order_1", "pay_1", sig))
	assert.False(t, gw.VerifySignature("order_1", "pay_1", ""))
	assert.False(t, gw.VerifySignature("", "", checkoutSignature("", "", "secret")))
}

func TestParseOrder(t *testing.T) {
	o, err := parseOrder(map[string]interface{}{
		"id":       "order_abc",
		"amount":   float64(5000),
		"currency": "INR",
		"receipt":  "p_12",
		"status":   "paid",
	})
	require.NoError(t, err)
	assert.Equal(t, &Order{ID: "order_abc", Amount: 5000, Currency: "INR", Receipt: "p_12", Status: OrderPaid}, o)

	_, err = parseOrder(map[string]interface{}{"status": "paid"})
	assert.Error(t, err)
}

func TestParseAttempts(t *testing.T) {
	attempts := parseAttempts(map[string]interface{}{
		"entity": "collection",
		"count":  float64(2),
		"items": []interface{}{
			map[string]interface{}{"id": "pay_1", "status": "failed"},
			map[string]interface{}{"id": "pay_2", "status": "captured"},
			"garbage",
		},
	})
	assert.Equal(t, []Attempt{{ID: "pay_1", Status: AttemptFailed}, {ID: "pay_2", Status: AttemptCaptured}}, attempts)
	assert.Empty(t, parseAttempts(map[string]interface{}{}))
}

func TestNewRazorpayGateway_RequiresKeys(t *testing.T) {
	_, err := NewRazorpayGateway(RazorpayConfig{KeyID: "k"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
