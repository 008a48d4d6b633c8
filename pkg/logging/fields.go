package logging

import "log/slog"

// Domain identifiers

func Room(id string) slog.Attr {
	return slog.String("room_id", id)
}

func Conn(id string) slog.Attr {
	return slog.String("conn_id", id)
}

func Customer(id string) slog.Attr {
	return slog.String("customer_id", id)
}

func Agent(id string) slog.Attr {
	return slog.String("agent_id", id)
}

func Message(id string) slog.Attr {
	return slog.String("message_id", id)
}

func Position(pos int) slog.Attr {
	return slog.Int("position", pos)
}

// Request / tracing

func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}

func TraceID(id string) slog.Attr {
	return slog.String("trace_id", id)
}

// Error handling

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("err", "")
	}
	return slog.String("err", err.Error())
}
