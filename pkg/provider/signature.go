package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Headers set on signed requests.
const (
	HeaderSignature = "X-Seoflow-Signature"
	HeaderTimestamp = "X-Seoflow-Timestamp"
)

var ErrInvalidSignature = errors.New("invalid request signature")

// Sign returns the hex HMAC-SHA256 of "<unix ts>.<body>".
func Sign(secret string, ts int64, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(strconv.FormatInt(ts, 10)))
	h.Write([]byte{'.'})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// signRequest adds the signature headers for body at now.
func signRequest(h http.Header, secret string, body []byte, now time.Time) {
	ts := now.Unix()
	h.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	h.Set(HeaderSignature, Sign(secret, ts, body))
}

// VerifySignature checks the signature headers of a request received from a
// worker. maxAge bounds the accepted timestamp age; one minute of clock skew
// into the future is tolerated. maxAge <= 0 skips the age check.
func VerifySignature(secret string, h http.Header, body []byte, maxAge time.Duration) error {
	if secret == "" {
		return fmt.Errorf("%w: secret is required", ErrInvalidSignature)
	}
	sig := h.Get(HeaderSignature)
	if sig == "" {
		return fmt.Errorf("%w: missing %s", ErrInvalidSignature, HeaderSignature)
	}
	ts, err := strconv.ParseInt(h.Get(HeaderTimestamp), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad %s", ErrInvalidSignature, HeaderTimestamp)
	}

	if maxAge > 0 {
		age := time.Since(time.Unix(ts, 0))
		if age > maxAge {
			return fmt.Errorf("%w: timestamp too old (%s)", ErrInvalidSignature, age.Truncate(time.Second))
		}
		if age < -time.Minute {
			return fmt.Errorf("%w: timestamp in the future", ErrInvalidSignature)
		}
	}

	if !hmac.Equal([]byte(Sign(secret, ts, body)), []byte(sig)) {
		return fmt.Errorf("%w: signature mismatch", ErrInvalidSignature)
	}
	return nil
}
