package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/soreon/mailout/internal/campaign"
	"github.com/soreon/mailout/internal/config"
	"github.com/soreon/mailout/internal/email"
	"github.com/soreon/mailout/internal/recipient"
	"github.com/soreon/mailout/internal/template"
)

var (
	testSendTo      string
	testSendName    string
	testSendSubject string
	testSendBody    string
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Testing and debugging commands",
}

var testSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a single test email",
	RunE:  runTestSend,
}

var testSMTPCmd = &cobra.Command{
	Use:   "smtp",
	Short: "Verify the SMTP relay connection without sending",
	RunE:  runTestSMTP,
}

func init() {
	testSendCmd.Flags().StringVar(&testSendTo, "to", "", "Recipient email address (required)")
	testSendCmd.Flags().StringVar(&testSendName, "name", "", "Recipient name")
	testSendCmd.Flags().StringVar(&testSendSubject, "subject", "Test message from mailout", "Subject template")
	testSendCmd.Flags().StringVar(&testSendBody, "body", "<p>This is a test message from mailout.</p>", "Body template")
	testSendCmd.MarkFlagRequired("to")

	testCmd.AddCommand(testSendCmd, testSMTPCmd)
	rootCmd.AddCommand(testCmd)
}

// newCLILogger writes structured logs to stderr so command output on
// stdout stays clean.
func newCLILogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelWarn
	if cfg.Level == "debug" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func runTestSend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !email.ValidAddress(testSendTo) {
		return fmt.Errorf("invalid --to address: %s", testSendTo)
	}

	from, err := resolveFrom(cfg)
	if err != nil {
		return err
	}

	target := recipient.Recipient{Email: testSendTo, Name: testSendName}
	messages, err := campaign.NewPersonalizer(template.NewEngine()).
		Personalize(testSendBody, testSendSubject, []recipient.Recipient{target})
	if err != nil {
		return fmt.Errorf("failed to render message: %w", err)
	}

	client, err := newSMTPClient(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("Sending test email...\n")
	fmt.Printf("  From: %s\n", from)
	fmt.Printf("  To: %s\n", testSendTo)

	id, err := client.Send(context.Background(), from, &messages[0])
	if err != nil {
		return fmt.Errorf("delivery failed: %w", err)
	}

	fmt.Printf("Delivered, message id %s\n", id)
	return nil
}

func runTestSMTP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	client, err := newSMTPClient(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("Connecting to %s:%d...\n", cfg.SMTP.Host, cfg.SMTP.Port)

	if err := client.Verify(context.Background()); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	fmt.Println("Connection and authentication OK")
	return nil
}
