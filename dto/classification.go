package dto

import "github.com/mailsignal/mailsignal/internal/enum"

// ClassificationRequest is the structured prompt contract sent to every
// AI provider: the five allowed categories plus the message projection.
type ClassificationRequest struct {
	Subject     string `json:"subject"`
	FromName    string `json:"fromName"`
	FromAddress string `json:"fromAddress"`
	BodyText    string `json:"bodyText"`
}

// ClassificationResult is always produced for every classified message;
// the orchestrator guarantees a deterministic fallback.
type ClassificationResult struct {
	Category   enum.Category `json:"category"`
	Confidence float64       `json:"confidence"`
	Reasoning  string        `json:"reasoning"`
}

// ProviderResponse is the JSON shape providers are instructed to return
type ProviderResponse struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// BatchItemResult captures the per-item outcome of a batch classification;
// one failing item never fails its siblings.
type BatchItemResult struct {
	EmailID string               `json:"emailId"`
	Result  ClassificationResult `json:"result"`
	Err     error                `json:"-"`
}
