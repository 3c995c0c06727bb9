// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package models defines the data structures shared across the postmeet
// service. The JSON tags mirror the wire schema of the orchestration oracle.
package models

import "strings"

// NextStep is the pipeline step the oracle says may follow this record.
type NextStep string

const (
	NextStepNone            NextStep = "NONE"
	NextStepTranscriptReady NextStep = "TRANSCRIPT_READY"
)

// Valid reports whether s is one of the known steps.
func (s NextStep) Valid() bool {
	return s == NextStepNone || s == NextStepTranscriptReady
}

// BlockingError is the oracle's well-formed "no".
type BlockingError struct {
	IsBlocking bool    `json:"is_blocking"`
	Reason     *string `json:"reason"`
}

// ReasonText returns the reason or "" when the oracle sent null.
func (b BlockingError) ReasonText() string {
	if b.Reason == nil {
		return ""
	}
	return strings.TrimSpace(*b.Reason)
}

// ContentType is the body format of an outgoing email.
type ContentType string

const (
	ContentTypeHTML ContentType = "HTML"
	ContentTypeText ContentType = "Text"
)

// Normalize returns the canonical spelling of c, matching case-insensitively.
// Anything that is not Text is HTML.
func (c ContentType) Normalize() ContentType {
	if strings.EqualFold(strings.TrimSpace(string(c)), string(ContentTypeText)) {
		return ContentTypeText
	}
	return ContentTypeHTML
}

// EmailBody represents the message body content.
type EmailBody struct {
	ContentType ContentType `json:"contentType"`
	Content     string      `json:"content"`
}

// EmailPayload is one recipient-specific email prepared by the oracle.
type EmailPayload struct {
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	Body    EmailBody `json:"body"`
}

// Sender identifies who the oracle prepared the emails to be sent from.
type Sender struct {
	Email        string `json:"email"`
	AuthProvider string `json:"auth_provider"`
}

// EmailExecutionIntent carries the per-attendee email batch.
type EmailExecutionIntent struct {
	Intent        string         `json:"intent"`
	Sender        Sender         `json:"sender"`
	Emails        []EmailPayload `json:"emails"`
	BlockingError BlockingError  `json:"blocking_error"`
}

// ActionItem is a single follow-up extracted from the meeting.
type ActionItem struct {
	Task            string  `json:"task"`
	Owner           *string `json:"owner"`
	Deadline        *string `json:"deadline"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// OwnerName returns the owner or "" when unassigned.
func (a ActionItem) OwnerName() string {
	if a.Owner == nil {
		return ""
	}
	return strings.TrimSpace(*a.Owner)
}

// DeadlineText returns the raw deadline or "" when absent.
func (a ActionItem) DeadlineText() string {
	if a.Deadline == nil {
		return ""
	}
	return strings.TrimSpace(*a.Deadline)
}

// SharedMeetingTemplate is the meeting intelligence shared with all attendees.
type SharedMeetingTemplate struct {
	Summary        string       `json:"summary"`
	AgendaItems    []string     `json:"agenda_items"`
	KeyDiscussions []string     `json:"key_discussions"`
	Decisions      []string     `json:"decisions"`
	ActionItems    []ActionItem `json:"action_items"`
}

// Attendee is a meeting participant. Email is nil when the transcript
// never revealed an address.
type Attendee struct {
	Name  string  `json:"name"`
	Email *string `json:"email"`
}

// MeetingMetadata describes the meeting itself.
type MeetingMetadata struct {
	Title     *string    `json:"meeting_title"`
	Attendees []Attendee `json:"attendees"`
	Date      string     `json:"meeting_date,omitempty"`
}

// TitleText returns the meeting title or "" when unknown.
func (m *MeetingMetadata) TitleText() string {
	if m == nil || m.Title == nil {
		return ""
	}
	return strings.TrimSpace(*m.Title)
}

// AuthFix reports the oracle's view of the caller's sign-in state.
type AuthFix struct {
	SigninRequired bool    `json:"signin_required"`
	EmailCaptured  bool    `json:"email_captured"`
	AuthProvider   *string `json:"auth_provider,omitempty"`
	BlockingReason *string `json:"blocking_reason,omitempty"`
}

// AudioPipelineStatus reports how far a media input got through transcription.
type AudioPipelineStatus struct {
	InputReceived          bool    `json:"input_received"`
	FileType               *string `json:"file_type,omitempty"`
	AudioValidated         bool    `json:"audio_validated"`
	AudioExtracted         bool    `json:"audio_extracted"`
	TranscriptionTriggered bool    `json:"transcription_triggered"`
	TranscriptionCompleted bool    `json:"transcription_completed"`
	TranscriptAvailable    bool    `json:"transcript_available"`
}

// RequiredFix is one remediation step suggested by the diagnostic report.
type RequiredFix struct {
	Step   string `json:"step"`
	Action string `json:"action"`
}

// TranscriptionDiagnostic explains why a transcript is unavailable.
type TranscriptionDiagnostic struct {
	Diagnosis struct {
		AudioAccessOK              bool `json:"audio_access_ok"`
		FormatSupported            bool `json:"format_supported"`
		AudioExtracted             bool `json:"audio_extracted"`
		TranscriptionCalled        bool `json:"transcription_called"`
		TranscriptionResponseValid bool `json:"transcription_response_valid"`
	} `json:"diagnosis"`
	FailurePoint     *string       `json:"failure_point,omitempty"`
	RootCause        *string       `json:"root_cause,omitempty"`
	RequiredFix      []RequiredFix `json:"required_fix"`
	TranscriptStatus struct {
		Available bool    `json:"available"`
		Length    float64 `json:"length"`
	} `json:"transcript_status"`
	PipelineState string `json:"pipeline_state"`
}

// OutlookFix reports provider readiness for calendar and email execution.
type OutlookFix struct {
	OutlookReady           bool     `json:"outlook_ready"`
	MissingPrerequisites   []string `json:"missing_prerequisites"`
	CalendarExecutionReady bool     `json:"calendar_execution_ready"`
	EmailExecutionReady    bool     `json:"email_execution_ready"`
}

// OrchestrationRecord is the oracle's structured answer for one processing
// cycle. It is immutable once received.
type OrchestrationRecord struct {
	BlockingError         BlockingError          `json:"blocking_error"`
	NextAllowedStep       NextStep               `json:"next_allowed_step"`
	EmailExecutionIntent  EmailExecutionIntent   `json:"email_execution_intent"`
	SharedMeetingTemplate *SharedMeetingTemplate `json:"shared_meeting_template,omitempty"`
	MeetingMetadata       *MeetingMetadata       `json:"meeting_metadata,omitempty"`

	AuthFix                 *AuthFix                 `json:"auth_fix,omitempty"`
	AudioPipelineStatus     *AudioPipelineStatus     `json:"audio_pipeline_status,omitempty"`
	TranscriptPreview       *string                  `json:"transcript_preview,omitempty"`
	TranscriptionDiagnostic *TranscriptionDiagnostic `json:"transcription_diagnostic,omitempty"`
	OutlookFix              *OutlookFix              `json:"outlook_fix,omitempty"`
	NextActions             []string                 `json:"next_actions,omitempty"`
}

// EffectiveNextStep is NONE for any blocking record, whatever the oracle sent.
func (r *OrchestrationRecord) EffectiveNextStep() NextStep {
	if r.BlockingError.IsBlocking {
		return NextStepNone
	}
	return r.NextAllowedStep
}

// ActionItems returns the template's action items, or nil without a template.
func (r *OrchestrationRecord) ActionItems() []ActionItem {
	if r.SharedMeetingTemplate == nil {
		return nil
	}
	return r.SharedMeetingTemplate.ActionItems
}
