package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/soreon/mailout/internal/campaign"
	"github.com/soreon/mailout/internal/config"
	"github.com/soreon/mailout/internal/dkim"
	"github.com/soreon/mailout/internal/email"
	"github.com/soreon/mailout/internal/recipient"
	"github.com/soreon/mailout/internal/smtp"
	"github.com/soreon/mailout/internal/template"
)

var (
	sendRecipientsFile string
	sendTemplateFile   string
	sendSubject        string
	sendFrom           string
	sendFromName       string
	sendDelay          time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a personalized bulk mailing",
	Long: `Send reads a recipient file (xlsx, xls or xml) and a template file,
renders one message per recipient and sends them sequentially through
the configured SMTP relay.`,
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendRecipientsFile, "recipients", "", "Recipient file (required)")
	sendCmd.Flags().StringVar(&sendTemplateFile, "template", "", "Template file (required)")
	sendCmd.Flags().StringVar(&sendSubject, "subject", "", "Subject template")
	sendCmd.Flags().StringVar(&sendFrom, "from", "", "Sender address (defaults to the configured sender)")
	sendCmd.Flags().StringVar(&sendFromName, "from-name", "", "Sender display name")
	sendCmd.Flags().DurationVar(&sendDelay, "delay", -1, "Pause between messages (defaults to the configured delay)")
	sendCmd.MarkFlagRequired("recipients")
	sendCmd.MarkFlagRequired("template")

	rootCmd.AddCommand(sendCmd)
}

// newSMTPClient builds the relay client from the configuration, including
// the DKIM signer when enabled.
func newSMTPClient(cfg *config.Config) (*smtp.Client, error) {
	client := smtp.NewClient(smtp.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Secure:   cfg.SMTP.Secure,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
	}, cfg.Server.Hostname, cfg.SMTP.Timeout, newCLILogger(cfg.Logging))

	if cfg.DKIM.Enabled {
		signer, err := dkim.NewSignerFromFile(cfg.DKIM.KeyFile, cfg.DKIM.Domain, cfg.DKIM.Selector)
		if err != nil {
			return nil, fmt.Errorf("failed to setup DKIM: %w", err)
		}
		client.SetDKIMSigner(signer)
	}

	return client, nil
}

func resolveFrom(cfg *config.Config) (string, error) {
	if sendFrom != "" {
		if !email.ValidAddress(sendFrom) {
			return "", fmt.Errorf("invalid --from address: %s", sendFrom)
		}
		return email.FormatAddress(sendFromName, sendFrom), nil
	}
	if cfg.Send.DefaultSenderEmail != "" {
		return email.FormatAddress(cfg.Send.DefaultSenderName, cfg.Send.DefaultSenderEmail), nil
	}
	return "", fmt.Errorf("no sender: use --from or set send.default_sender_email")
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	from, err := resolveFrom(cfg)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(sendRecipientsFile)
	if err != nil {
		return fmt.Errorf("failed to read recipient file: %w", err)
	}
	recipients, err := recipient.Parse(data, "", filepath.Base(sendRecipientsFile))
	if err != nil {
		return fmt.Errorf("failed to parse recipient file: %w", err)
	}

	content, err := os.ReadFile(sendTemplateFile)
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}

	engine := template.NewEngine()
	messages, err := campaign.NewPersonalizer(engine).Personalize(string(content), sendSubject, recipients)
	if err != nil {
		return fmt.Errorf("failed to personalize: %w", err)
	}

	client, err := newSMTPClient(cfg)
	if err != nil {
		return err
	}

	delay := sendDelay
	if delay < 0 {
		delay = cfg.Send.DefaultDelay
	}

	fmt.Printf("Sending %d messages from %s (delay %s)\n", len(messages), from, delay)

	dispatcher := campaign.NewDispatcher(client, newCLILogger(cfg.Logging))
	dispatcher.OnProgress(func(p campaign.Progress) {
		status := "ok"
		if !p.Result.Success {
			status = "FAILED: " + p.Result.Error
		}
		fmt.Printf("  [%d/%d] %s %s\n", p.Current, p.Total, p.Result.To, status)
	})

	result := dispatcher.SendBulk(context.Background(), from, messages, delay)

	fmt.Printf("Done: %d sent, %d failed, %d total\n", result.Success, result.Failed, result.Total)
	if result.Failed > 0 && result.Success == 0 {
		return fmt.Errorf("all deliveries failed")
	}

	return nil
}
