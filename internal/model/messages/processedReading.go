package messages

import "time"

// QualityTier is the coarse label derived from a confidence score.
type QualityTier string

const (
	QualityExcellent QualityTier = "excellent"
	QualityGood      QualityTier = "good"
	QualityFair      QualityTier = "fair"
)

// QualityFor maps a confidence score onto its tier.
func QualityFor(confidence float64) QualityTier {
	switch {
	case confidence > 0.9:
		return QualityExcellent
	case confidence > 0.7:
		return QualityGood
	default:
		return QualityFair
	}
}

// ProcessedReading is a reading after scoring. It is never mutated once built.
type ProcessedReading struct {
	SensorReading
	ConfidenceScore float64     `json:"confidence_score"`
	ProcessedAt     time.Time   `json:"processed_at"`
	QualityLevel    QualityTier `json:"quality_level"`
}
