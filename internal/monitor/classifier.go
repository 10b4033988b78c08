package monitor

import (
	"fmt"

	"AI_PROCTOR/go-backend/internal/models"
)

type flagRule struct {
	eventType models.EventType
	severity  models.Severity
}

// flagTable maps raw detector labels to the closed flagged-category
// taxonomy. Labels outside the table are dropped.
var flagTable = map[string]flagRule{
	"cell phone": {models.EventPhoneDetected, models.SeverityHigh},
	"book":       {models.EventBookDetected, models.SeverityHigh},
	"laptop":     {models.EventDeviceDetected, models.SeverityHigh},
	"tv":         {models.EventDeviceDetected, models.SeverityHigh},
	"monitor":    {models.EventDeviceDetected, models.SeverityHigh},
	"keyboard":   {models.EventDeviceDetected, models.SeverityHigh},
	"mouse":      {models.EventDeviceDetected, models.SeverityHigh},
	"cup":        {models.EventBeverageDetected, models.SeverityLow},
	"bottle":     {models.EventBeverageDetected, models.SeverityLow},
	"glass":      {models.EventBeverageDetected, models.SeverityLow},
}

// ObjectClassifier maps object observations to flagged events. Stateless:
// every qualifying observation produces exactly one finding, immediately.
type ObjectClassifier struct {
	minConfidence float64
}

func NewObjectClassifier(minConfidence float64) *ObjectClassifier {
	return &ObjectClassifier{minConfidence: minConfidence}
}

func (c *ObjectClassifier) Classify(objects []models.ObjectObservation) []Finding {
	var findings []Finding
	for _, obj := range objects {
		if obj.Confidence < c.minConfidence {
			continue
		}
		rule, ok := flagTable[obj.Label]
		if !ok {
			continue
		}
		findings = append(findings, Finding{
			Type:     rule.eventType,
			Severity: rule.severity,
			Details:  flagDetails(rule.eventType, obj.Label),
		})
	}
	return findings
}

func flagDetails(t models.EventType, label string) string {
	switch t {
	case models.EventPhoneDetected:
		return "Mobile phone detected"
	case models.EventBookDetected:
		return "Book or notes detected"
	case models.EventDeviceDetected:
		return fmt.Sprintf("Extra electronic device (%s) detected", label)
	default:
		return fmt.Sprintf("%s detected", label)
	}
}
