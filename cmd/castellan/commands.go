package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// --- alert ---

var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Push a security alert into active conversations",
	Long: `Push a security alert into active conversations.

Examples:
  castellan alert --title "Ransomware detected" --description "Encryption activity on fs-03" --severity critical
  castellan alert --title "Policy audit due" --description "Quarterly review" --category compliance --users u1,u2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		description, _ := cmd.Flags().GetString("description")
		severity, _ := cmd.Flags().GetString("severity")
		category, _ := cmd.Flags().GetString("category")
		source, _ := cmd.Flags().GetString("source")
		id, _ := cmd.Flags().GetString("id")
		users, _ := cmd.Flags().GetString("users")

		if title == "" || description == "" {
			return fmt.Errorf("--title and --description are required")
		}
		if id == "" {
			id = uuid.New().String()
		}

		req := map[string]any{
			"id":          id,
			"title":       title,
			"description": description,
		}
		if severity != "" {
			req["severity"] = severity
		}
		if category != "" {
			req["category"] = category
		}
		if source != "" {
			req["source"] = source
		}
		if users != "" {
			req["targetUsers"] = splitList(users)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/securityAlert", req)
		if err != nil {
			return err
		}

		var result struct {
			Message        string `json:"message"`
			RecipientCount int    `json:"recipientCount"`
			AlertID        string `json:"alertId"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Alert %s: %s", result.AlertID, result.Message)
		if severity != "" {
			printStatus("Severity", "%s", paint(severityColor(severity), severity))
		}
		return nil
	},
}

// --- notify ---

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send a proactive notification to active conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		message, _ := cmd.Flags().GetString("message")
		title, _ := cmd.Flags().GetString("title")
		url, _ := cmd.Flags().GetString("url")
		users, _ := cmd.Flags().GetString("users")

		if message == "" {
			return fmt.Errorf("--message is required")
		}

		req := map[string]any{
			"prompt": message,
		}
		if title != "" {
			req["title"] = title
		}
		if url != "" {
			req["notificationUrl"] = url
		}
		if users != "" {
			req["targetUsers"] = splitList(users)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/notification", req)
		if err != nil {
			return err
		}

		var result struct {
			Message        string `json:"message"`
			RecipientCount int    `json:"recipientCount"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("%s", result.Message)
		return nil
	},
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func init() {
	alertCmd.Flags().String("id", "", "alert id (generated when omitted)")
	alertCmd.Flags().String("title", "", "alert headline")
	alertCmd.Flags().String("description", "", "alert description")
	alertCmd.Flags().String("severity", "", "low, medium, high, or critical")
	alertCmd.Flags().String("category", "", "threat, incident, compliance, vulnerability, or access")
	alertCmd.Flags().String("source", "", "system that raised the alert")
	alertCmd.Flags().String("users", "", "comma-separated user ids to target")

	notifyCmd.Flags().String("message", "", "notification text")
	notifyCmd.Flags().String("title", "", "optional headline")
	notifyCmd.Flags().String("url", "", "link appended to the message")
	notifyCmd.Flags().String("users", "", "comma-separated user ids to target")
}
