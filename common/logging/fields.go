package logging

import "log/slog"

// Field names shared by every component so log queries stay uniform.
const (
	FieldService   = "service"
	FieldRequestID = "request_id"
	FieldIP        = "ip"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldError     = "error"
	FieldEventType = "event_type"
	FieldPattern   = "pattern"
	FieldSessionID = "session_id"
	FieldSeverity  = "severity"
	FieldURL       = "url"
	FieldDirective = "directive"
)

func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Error returns an attribute for err. A nil error yields an empty value.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

func EventType(t string) slog.Attr {
	return slog.String(FieldEventType, t)
}

func Pattern(p string) slog.Attr {
	return slog.String(FieldPattern, p)
}

func SessionID(id string) slog.Attr {
	return slog.String(FieldSessionID, id)
}

func Severity(s string) slog.Attr {
	return slog.String(FieldSeverity, s)
}

func URL(u string) slog.Attr {
	return slog.String(FieldURL, u)
}

func Directive(d string) slog.Attr {
	return slog.String(FieldDirective, d)
}
