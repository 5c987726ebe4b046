// Package signing verifies the detached PGP signature attached to a
// SignedRelease install source, and answers the show-signing-key and
// verify CLI commands. The trust store is a single well-known armored
// public key; per-publisher key management is out of scope.
package signing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ProtonMail/gopenpgp/v2/crypto"

	"github.com/zephyr-sh/zephyr/internal/httputil"
)

const (
	// MaxSignatureSize bounds a downloaded detached-signature file.
	MaxSignatureSize = 10 * 1024
	// FetchTimeout bounds both the signature and key downloads.
	FetchTimeout = 30 * time.Second
)

// Verifier checks a release artifact against a trusted public key. It is
// narrow and mockable: callers supply the armored key out of band (from
// an embedded trust anchor, a file, or a CLI flag) rather than this
// package reaching out to a keyserver.
type Verifier struct {
	key *crypto.Key
}

// NewVerifier builds a Verifier from an armored PGP public key.
func NewVerifier(armoredKey string) (*Verifier, error) {
	key, err := crypto.NewKeyFromArmored(armoredKey)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	return &Verifier{key: key}, nil
}

// Fingerprint returns the verifier's key fingerprint, formatted in groups
// of four for display by show-signing-key.
func (v *Verifier) Fingerprint() string {
	return FormatFingerprint(v.key.GetFingerprint())
}

// VerifyFile checks path against a detached signature, either armored
// (.asc text) or raw binary.
func (v *Verifier) VerifyFile(path string, signature []byte) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file for signature verification: %w", err)
	}
	return v.VerifyBytes(data, signature)
}

// VerifyBytes checks data against a detached signature.
func (v *Verifier) VerifyBytes(data, signature []byte) error {
	sig, err := crypto.NewPGPSignatureFromArmored(string(signature))
	if err != nil {
		sig = crypto.NewPGPSignature(signature)
	}

	keyRing, err := crypto.NewKeyRing(v.key)
	if err != nil {
		return fmt.Errorf("build keyring: %w", err)
	}

	message := crypto.NewPlainMessage(data)
	if err := keyRing.VerifyDetached(message, sig, 0); err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	return nil
}

// FetchSignature downloads a detached signature file from signatureURL,
// bounded to MaxSignatureSize.
func FetchSignature(ctx context.Context, signatureURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	client := httputil.NewSecureClient(httputil.ClientOptions{Timeout: FetchTimeout})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, signatureURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build signature request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch signature from %s: %w", signatureURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch signature: HTTP %d", resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, MaxSignatureSize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read signature: %w", err)
	}
	if len(data) > MaxSignatureSize {
		return nil, fmt.Errorf("signature exceeds maximum size of %d bytes", MaxSignatureSize)
	}
	return data, nil
}

// FormatFingerprint renders a 40-character hex fingerprint in the
// standard GPG groups-of-four form. Inputs of other lengths pass through
// unchanged.
func FormatFingerprint(fp string) string {
	fp = strings.ToUpper(strings.ReplaceAll(fp, " ", ""))
	if len(fp) != 40 {
		return fp
	}
	var b strings.Builder
	for i := 0; i < len(fp); i += 4 {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(fp[i : i+4])
	}
	return b.String()
}
