package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soreon/mailout/internal/template"
)

var templateDataJSON string

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Template commands",
}

var templateValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check template syntax",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateValidate,
}

var templateVarsCmd = &cobra.Command{
	Use:   "vars <file>",
	Short: "List the variables a template references",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateVars,
}

var templatePreviewCmd = &cobra.Command{
	Use:   "preview <file>",
	Short: "Render a template with sample data",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplatePreview,
}

func init() {
	templatePreviewCmd.Flags().StringVar(&templateDataJSON, "data", "{}", "JSON object with sample variable values")

	templateCmd.AddCommand(templateValidateCmd, templateVarsCmd, templatePreviewCmd)
	rootCmd.AddCommand(templateCmd)
}

func runTemplateValidate(cmd *cobra.Command, args []string) error {
	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}

	engine := template.NewEngine()
	result := engine.Validate(string(content))
	if !result.Valid {
		return fmt.Errorf("template is invalid: %s", result.Error)
	}

	vars := engine.ExtractVariables(string(content))
	fmt.Printf("Template is valid\n")
	if len(vars) > 0 {
		fmt.Printf("  Variables: %s\n", strings.Join(vars, ", "))
	}

	return nil
}

func runTemplateVars(cmd *cobra.Command, args []string) error {
	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}

	for _, v := range template.NewEngine().ExtractVariables(string(content)) {
		fmt.Println(v)
	}

	return nil
}

func runTemplatePreview(cmd *cobra.Command, args []string) error {
	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}

	vars := map[string]string{}
	if err := json.Unmarshal([]byte(templateDataJSON), &vars); err != nil {
		return fmt.Errorf("invalid --data JSON: %w", err)
	}

	html, err := template.NewEngine().Preview(string(content), vars)
	if err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	fmt.Println(html)
	return nil
}
