package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zephyr-sh/zephyr/internal/signing"
)

var showSigningKeyCmd = &cobra.Command{
	Use:   "show-signing-key",
	Short: "Print the fingerprint of the trust anchor used to verify signed releases",
	RunE:  runShowSigningKey,
}

var verifyCmd = &cobra.Command{
	Use:   "verify <path>",
	Short: "Verify a downloaded file against a detached signature of the same name plus .sig",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func runShowSigningKey(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	anchor := signingTrustAnchor(cfg)
	if anchor == "" {
		return newUsageError("no trust anchor configured; set $ZEPHYR_SIGNING_KEY or place an armored key at %s.pubkey", cfg.SecurityFile)
	}

	verifier, err := signing.NewVerifier(anchor)
	if err != nil {
		return err
	}

	fmt.Println(verifier.Fingerprint())
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	anchor := signingTrustAnchor(cfg)
	if anchor == "" {
		return newUsageError("no trust anchor configured; set $ZEPHYR_SIGNING_KEY or place an armored key at %s.pubkey", cfg.SecurityFile)
	}

	verifier, err := signing.NewVerifier(anchor)
	if err != nil {
		return err
	}

	path := args[0]
	sig, err := os.ReadFile(path + ".sig")
	if err != nil {
		return newUsageError("read detached signature %s.sig: %v", path, err)
	}

	if err := verifier.VerifyFile(path, sig); err != nil {
		fmt.Fprintf(os.Stderr, "signature verification failed: %v\n", err)
		exitWithCode(ExitGeneral)
		return nil
	}

	fmt.Printf("%s: signature OK (key %s)\n", path, verifier.Fingerprint())
	return nil
}
