package otp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/richxcame/pizzaguard/pkg/logger"
	"github.com/richxcame/pizzaguard/pkg/resilience"
	"github.com/richxcame/pizzaguard/pkg/tracing"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// MessageAPI is the Twilio call the sender makes.
type MessageAPI interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender delivers codes by SMS through Twilio, behind a circuit breaker.
type TwilioSender struct {
	api        MessageAPI
	fromNumber string
	ttl        time.Duration
	breaker    *resilience.CircuitBreaker
	retry      resilience.RetryConfig
}

// NewTwilioSender creates a sender using the Twilio REST API.
func NewTwilioSender(accountSid, authToken, fromNumber string, ttl time.Duration, breaker *resilience.CircuitBreaker) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSid,
		Password: authToken,
	})
	return NewTwilioSenderWithAPI(client.Api, fromNumber, ttl, breaker)
}

// NewTwilioSenderWithAPI creates a sender around an existing message API.
func NewTwilioSenderWithAPI(api MessageAPI, fromNumber string, ttl time.Duration, breaker *resilience.CircuitBreaker) *TwilioSender {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(resilience.Settings{
			Name:             "twilio-sms",
			Interval:         60 * time.Second,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
			SuccessThreshold: 2,
		}, nil)
	}

	retry := resilience.DefaultRetryConfig()
	retry.InitialBackoff = 500 * time.Millisecond
	retry.MaxBackoff = 5 * time.Second
	retry.RetryableChecker = isTwilioRetryable

	return &TwilioSender{
		api:        api,
		fromNumber: fromNumber,
		ttl:        ttl,
		breaker:    breaker,
		retry:      retry,
	}
}

// SendOTP sends the code as an SMS.
func (t *TwilioSender) SendOTP(ctx context.Context, to, code string) error {
	body := fmt.Sprintf("Your verification code is: %s. This code expires in %d minutes.", code, int(t.ttl.Minutes()))

	var sid string
	err := tracing.TraceExternalAPI(ctx, tracerName, "twilio", "send_sms", func(ctx context.Context) error {
		result, err := resilience.RetryWithBreaker(ctx, t.retry, t.breaker, func(ctx context.Context) (interface{}, error) {
			params := &twilioApi.CreateMessageParams{}
			params.SetTo(to)
			params.SetFrom(t.fromNumber)
			params.SetBody(body)

			resp, err := t.api.CreateMessage(params)
			if err != nil {
				return nil, fmt.Errorf("failed to send SMS: %w", err)
			}
			if resp.Sid == nil {
				return nil, errNoSid
			}
			return *resp.Sid, nil
		})
		if err != nil {
			return err
		}
		sid = result.(string)
		return nil
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to send otp sms", zap.Error(err), zap.String("to", maskPhone(to)))
		return err
	}

	logger.Get().Debug("sent otp sms",
		zap.String("message_sid", sid),
		zap.String("to", maskPhone(to)),
	)
	return nil
}

const tracerName = "otp"

var errNoSid = errors.New("no message SID returned")

func isTwilioRetryable(err error) bool {
	if err == nil || errors.Is(err, errNoSid) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"invalid phone", "unverified", "authenticate", "21211", "21608"} {
		if strings.Contains(msg, s) {
			return false
		}
	}
	return true
}
