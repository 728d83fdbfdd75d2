package server

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/emirlan/inboxlm/internal/ai"
	"github.com/emirlan/inboxlm/internal/message"
	"github.com/emirlan/inboxlm/internal/store"
)

// DashboardData holds all data passed to the main dashboard template.
type DashboardData struct {
	Messages []store.Message
	Stats    store.Stats
	Uptime   string
}

// Template helper functions.
var funcMap = template.FuncMap{
	"timeAgo":       timeAgo,
	"truncateText":  truncateText,
	"platformIcon":  platformIcon,
	"platformColor": platformColor,
	"isUrgent":      isUrgent,
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	msgs, err := s.store.RecentMessages(r.Context(), 50)
	if err != nil {
		slog.Error("Failed to load recent messages", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	stats, err := s.store.Stats(r.Context(), ai.PriorityMax)
	if err != nil {
		slog.Error("Failed to load stats", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	data := DashboardData{
		Messages: msgs,
		Stats:    stats,
		Uptime:   timeAgo(s.startedAt),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Execute(w, data); err != nil {
		slog.Error("Failed to render dashboard template", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (s *Server) handleMessagesPartial(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.store.RecentMessages(r.Context(), 50)
	if err != nil {
		slog.Error("Failed to load recent messages", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.messagesTmpl.Execute(w, msgs); err != nil {
		slog.Error("Failed to render messages partial", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (s *Server) handleStatsPartial(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context(), ai.PriorityMax)
	if err != nil {
		slog.Error("Failed to load stats", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.statsTmpl.Execute(w, stats); err != nil {
		slog.Error("Failed to render stats partial", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// Disable write deadline for this long-lived SSE connection.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	// Send an initial comment to establish the connection.
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", event)
			flusher.Flush()
		}
	}
}

// --- Template Helper Functions ---

// timeAgo returns a human-readable relative time string.
func timeAgo(v any) string {
	var t time.Time
	switch val := v.(type) {
	case time.Time:
		t = val
	case *time.Time:
		if val == nil {
			return "never"
		}
		t = *val
	default:
		return "unknown"
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// truncateText truncates a string to max characters and appends "..." if
// truncated. Accepts *string too since annotation fields are nullable.
func truncateText(v any, max int) string {
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case *string:
		if val == nil {
			return ""
		}
		s = *val
	default:
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// isUrgent reports whether a message carries the highest priority.
func isUrgent(m store.Message) bool {
	return m.Priority != nil && *m.Priority == ai.PriorityMax
}

// platformIcon returns an emoji icon for the given platform.
func platformIcon(p message.Platform) string {
	switch p {
	case message.PlatformWhatsApp:
		return "\U0001F7E2" // green circle
	case message.PlatformSlack:
		return "\U0001F4AC" // speech balloon
	case message.PlatformGmail:
		return "\U0001F4E7" // e-mail
	default:
		return "\U0001F4E8" // incoming envelope
	}
}

// platformColor returns a CSS class name for the given platform.
func platformColor(p message.Platform) string {
	switch p {
	case message.PlatformWhatsApp:
		return "whatsapp"
	case message.PlatformSlack:
		return "slack"
	default:
		return "gmail"
	}
}

// --- HTMX Partial Templates (match dashboard.html CSS classes) ---

const messagesPartial = `{{range .}}
<div class="message-item{{if isUrgent .}} urgent{{end}}">
  <div class="message-header">
    <span class="source-badge {{platformColor .Platform}}">{{platformIcon .Platform}} {{.Platform}}</span>
    <span class="sender">{{.Sender}}</span>
    <span class="timestamp">{{timeAgo .CreatedAt}}</span>
  </div>
  <div class="message-body">{{if .Summary}}{{truncateText .Summary 120}}{{else}}{{truncateText .Content 120}}{{end}}</div>
  <div class="message-tags">
    {{if isUrgent .}}<span class="tag urgent">urgent</span>{{end}}
    {{with .Metadata.suggestedResponse}}<span class="tag action">reply ready</span>{{end}}
  </div>
</div>
{{else}}
<div class="empty-state">
  <div class="empty-state-icon">&#x1f4e1;</div>
  <div class="empty-state-text">Waiting for messages...</div>
</div>
{{end}}`

const statsPartial = `<div class="stat-card">
  <div class="stat-value">{{.TotalMessages}}</div>
  <div class="stat-label">Messages</div>
  <div class="source-breakdown">
    {{range $platform, $count := .ByPlatform}}
    <span class="source-mini"><span class="dot {{$platform}}"></span>{{$count}}</span>
    {{end}}
  </div>
</div>
<div class="stat-card urgent">
  <div class="stat-value">{{.UrgentMessages}}</div>
  <div class="stat-label">Urgent</div>
</div>
<div class="stat-card">
  <div class="stat-value">{{.Processed}}</div>
  <div class="stat-label">Processed</div>
</div>`
