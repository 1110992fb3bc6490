package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type GradeLevel string

const (
	GradeHighSchool GradeLevel = "High School"
	GradeCollege    GradeLevel = "College"
)

type Mode string

const (
	ModeNormal           Mode = "Normal"
	ModeConceptExplainer Mode = "3-Level Explain"
	ModeErrorChecker     Mode = "Error Checker"
	ModeEssayDraft       Mode = "Essay Draft"
)

// Media is a single attachment sent alongside a prompt. Data may carry a
// data-URL prefix; the gateway strips it before transmission.
type Media struct {
	Data     string `json:"data"`
	MIMEType string `json:"mime_type"`
}

// Message is one turn of a conversation. VisualAids is written exactly once,
// after generation for the owning response completes.
type Message struct {
	ID         string    `json:"id"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	Image      string    `json:"image,omitempty"`
	VisualAids []string  `json:"visual_aids,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type Session struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	GradeLevel  GradeLevel `json:"grade_level"`
	Messages    []Message  `json:"messages"`
	LastUpdated time.Time  `json:"last_updated"`
}

// AppState is the persisted global state of one installation: subscription
// tier, the daily usage counter and the date it belongs to, and the theme
// preference. Loaded at startup, saved on change.
type AppState struct {
	Pro             bool   `json:"pro"`
	DailyUsageCount int    `json:"daily_usage_count"`
	LastUsageDate   string `json:"last_usage_date"`
	DarkMode        bool   `json:"dark_mode"`
}

// HistoryWindow bounds how many prior turns are replayed to the solver.
const HistoryWindow = 6

// BoundedHistory returns at most the last HistoryWindow messages, oldest
// first, text untouched.
func BoundedHistory(messages []Message) []Message {
	if len(messages) <= HistoryWindow {
		return messages
	}
	return messages[len(messages)-HistoryWindow:]
}

const sessionTitleLimit = 29

// SessionTitle derives a session title from the first user message.
func SessionTitle(content string) string {
	title := strings.TrimSpace(content)
	if title == "" {
		return "New Conversation"
	}
	if len(title) > sessionTitleLimit {
		return title[:sessionTitleLimit] + "..."
	}
	return title
}
