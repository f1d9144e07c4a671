package downloaders

//go:generate mockgen -destination=mocks/mock_transport.go -package=mocks github.com/vidfetch/vidfetch/server/internal/downloaders Transport

import "context"

// Transport performs the actual transfer. lines receives every output line
// of the transfer layer and may be called from several goroutines.
// Run returns nil only when the transfer layer reported success.
type Transport interface {
	Run(ctx context.Context, url string, args []string, lines func([]byte)) error
}

// Logger is the leveled sink for transfer messages.
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warning(msg string)
	Error(msg string)
}
