// Package classify derives urgency and topic labels from message text
// using ordered keyword rule tables. Rules are data: each table is a
// slice checked in order, and the first matching entry wins.
package classify

import (
	"strings"

	"github.com/castellan/castellan/internal/alert"
)

// DefaultTopic is returned when no topic rule matches.
const DefaultTopic = "general security"

// urgencyTiers are checked top to bottom; ties favor the higher tier.
var urgencyTiers = []struct {
	level    alert.Severity
	keywords []string
}{
	{alert.SeverityCritical, []string{"breach", "attack", "compromise", "malware", "ransomware", "critical", "urgent", "emergency"}},
	{alert.SeverityHigh, []string{"threat", "suspicious", "alert", "incident", "vulnerability", "exploit"}},
	{alert.SeverityMedium, []string{"security", "audit", "compliance", "policy", "review"}},
}

// topicRules are checked in table order; the first topic with a keyword
// hit wins.
var topicRules = []struct {
	topic    string
	keywords []string
}{
	{"incident response", []string{"incident", "breach", "response plan", "containment", "forensic"}},
	{"threat analysis", []string{"threat", "attack", "apt", "ioc", "intelligence"}},
	{"compliance", []string{"compliance", "audit", "regulation", "gdpr", "hipaa", "pci"}},
	{"vulnerability management", []string{"vulnerability", "cve", "patch", "exploit", "scan"}},
	{"access control", []string{"access", "permission", "identity", "authentication", "authorization", "mfa"}},
	{"network security", []string{"network", "firewall", "vpn", "dns", "traffic"}},
	{"malware analysis", []string{"malware", "virus", "ransomware", "trojan", "phishing"}},
}

// Urgency returns the urgency tier for a message. Matching is
// case-insensitive substring containment against the raw text.
func Urgency(text string) alert.Severity {
	lower := strings.ToLower(text)
	for _, tier := range urgencyTiers {
		for _, kw := range tier.keywords {
			if strings.Contains(lower, kw) {
				return tier.level
			}
		}
	}
	return alert.SeverityLow
}

// Topic returns the topic label for a message, or DefaultTopic when no
// rule matches.
func Topic(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range topicRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.topic
			}
		}
	}
	return DefaultTopic
}
