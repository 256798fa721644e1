package tool

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Demo code accepted by VerifyCode. Real code delivery goes through the
// SMS sender when one is configured.
const demoVerificationCode = "1234"

// SMSSender delivers a text message. pkg/smsgateway provides the production
// implementation.
type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}

// SendVerificationCode sends the identity code for a deal. Without a
// configured sender, or without a phone number, delivery is simulated.
func (t *Toolset) SendVerificationCode(ctx context.Context, dealNumber, phoneNumber string) (string, error) {
	if _, err := t.deals.GetByNumber(ctx, dealNumber); err != nil {
		return "", err
	}

	target := phoneNumber
	if target == "" {
		target = "customer's phone"
	}

	if t.sms != nil && phoneNumber != "" {
		body := fmt.Sprintf("Your verification code is %s.", demoVerificationCode)
		if err := t.sms.Send(ctx, phoneNumber, body); err != nil {
			// Delivery failure falls back to the simulated path so the
			// verification step can still proceed in demos.
			log.Warn().Err(err).Str("deal_number", dealNumber).Msg("sms delivery failed, simulating")
		}
	}

	return fmt.Sprintf("Verification code sent to %s ending in XXXX. For demo purposes, the correct code is %s.", target, demoVerificationCode), nil
}

// VerifyCode checks the code a customer entered.
func VerifyCode(enteredCode string) (bool, string) {
	if enteredCode == demoVerificationCode {
		return true, "Verification successful - customer identity confirmed."
	}
	return false, "Verification failed - incorrect code entered."
}
