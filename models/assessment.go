package models

import "time"

// AssessmentRequest is the write payload for a health assessment.
// Structural validation runs through go-playground/validator; content
// threat scanning happens separately in the gateway pipeline.
type AssessmentRequest struct {
	Symptoms       []string          `json:"symptoms" validate:"required,min=1,dive,max=200"`
	Severity       map[string]int    `json:"severity" validate:"required,dive,gte=0,lte=10"`
	Duration       map[string]string `json:"duration" validate:"omitempty,dive,max=100"`
	MedicalHistory []string          `json:"medical_history" validate:"omitempty,dive,max=500"`
	Medications    []string          `json:"medications" validate:"omitempty,dive,max=200"`
	Age            int               `json:"age" validate:"required,gte=0,lte=130"`
	Gender         string            `json:"gender" validate:"required,max=40"`
}

// AssessmentResult is the opaque outcome handed back by the risk-scoring
// collaborator. The gateway only reads its audit coordinates.
type AssessmentResult struct {
	AssessmentID    string    `json:"assessment_id"`
	RiskScore       float64   `json:"risk_score"`
	Recommendations []string  `json:"recommendations"`
	SeverityLevel   string    `json:"severity_level"`
	Timestamp       time.Time `json:"timestamp"`
	Encrypted       bool      `json:"encrypted"`
}

// LoginRequest is the credential-exchange input contract.
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=1,max=120"`
	Password string `json:"password" validate:"required,min=1,max=200"`
	MFACode  string `json:"mfa_code,omitempty" validate:"omitempty,len=6"`
}

// RefreshRequest asks for a new token pair from a refresh credential.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}
