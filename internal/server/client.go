package server

// Client abstracts the connection a session talks over. Requests arrive
// as newline-delimited JSON; responses and pushed notifications go out as
// one JSON document per message.
type Client interface {
	// ReadLine blocks until a complete line is received (without newline).
	ReadLine() (string, error)

	// WriteJSON sends v as a single message. Safe for concurrent use.
	WriteJSON(v any) error

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the client's address for logging.
	RemoteAddr() string
}
