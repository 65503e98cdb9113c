package messaging

// Subjects follow {domain}.{resource}.{action}.
const (
	// SubjectSecurityEventsPrefix is suffixed with the event type,
	// e.g. security.events.suspicious_request.
	SubjectSecurityEventsPrefix = "security.events"

	SubjectPerformanceAlertsCreated = "performance.alerts.created"
	SubjectCSPReportsReceived       = "csp.reports.received"
)

// SecurityEventSubject returns the subject for a security event type.
func SecurityEventSubject(eventType string) string {
	return SubjectSecurityEventsPrefix + "." + eventType
}
