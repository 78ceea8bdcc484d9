// Package alert defines the security alert model shared by the HTTP
// surface and the notification router.
package alert

import (
	"strings"
	"time"
)

// Severity is the four-tier ordinal used for both declared alert
// severity and inferred message urgency.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Category classifies what kind of security event an alert describes.
type Category string

const (
	CategoryThreat        Category = "threat"
	CategoryIncident      Category = "incident"
	CategoryCompliance    Category = "compliance"
	CategoryVulnerability Category = "vulnerability"
	CategoryAccess        Category = "access"
)

// Alert is a security alert as submitted by an external system.
// Immutable once constructed.
type Alert struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	Severity           Severity  `json:"severity"`
	Category           Category  `json:"category"`
	Source             string    `json:"source"`
	Timestamp          time.Time `json:"timestamp"`
	AffectedSystems    []string  `json:"affectedSystems,omitempty"`
	RecommendedActions []string  `json:"recommendedActions,omitempty"`
}

// ParseSeverity maps a caller-supplied severity string to a Severity.
// Unknown or empty values default to medium.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityLow:
		return SeverityLow
	case SeverityMedium:
		return SeverityMedium
	case SeverityHigh:
		return SeverityHigh
	case SeverityCritical:
		return SeverityCritical
	default:
		return SeverityMedium
	}
}

// ParseCategory maps a caller-supplied category string to a Category.
// Unknown or empty values default to threat.
func ParseCategory(s string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryThreat:
		return CategoryThreat
	case CategoryIncident:
		return CategoryIncident
	case CategoryCompliance:
		return CategoryCompliance
	case CategoryVulnerability:
		return CategoryVulnerability
	case CategoryAccess:
		return CategoryAccess
	default:
		return CategoryThreat
	}
}
