package handlers

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ternarybob/arbor/levels"
	arbormodels "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/scriptor/internal/common"
)

const logStreamBufferSize = 1000

// Log lines that would feed back into the stream they describe
var defaultExcludePatterns = []string{
	"WebSocket client connected",
	"WebSocket client disconnected",
	"HTTP request",
	"HTTP response",
}

// WebSocketWriter consumes log batches from arbor's context channel and
// broadcasts them to connected WebSocket clients. Wire it with
// logger.SetChannel("context", writer.Channel()).
type WebSocketWriter struct {
	handler  *WebSocketHandler
	channel  chan []arbormodels.LogEvent
	minLevel levels.LogLevel
	done     chan struct{}
	wg       sync.WaitGroup
}

func NewWebSocketWriter(handler *WebSocketHandler, wsConfig *common.WebSocketConfig) *WebSocketWriter {
	minLevel := levels.InfoLevel
	if wsConfig != nil {
		minLevel = parseLogLevel(wsConfig.MinLevel)
	}

	return &WebSocketWriter{
		handler:  handler,
		channel:  make(chan []arbormodels.LogEvent, logStreamBufferSize),
		minLevel: minLevel,
		done:     make(chan struct{}),
	}
}

// Channel returns the channel for arbor to send log batches to
func (w *WebSocketWriter) Channel() chan []arbormodels.LogEvent {
	return w.channel
}

// Start launches the consumer goroutine
func (w *WebSocketWriter) Start() {
	w.wg.Add(1)
	go w.consume()
}

// Close stops the consumer and waits for it to drain
func (w *WebSocketWriter) Close() error {
	close(w.done)
	w.wg.Wait()
	return nil
}

func (w *WebSocketWriter) consume() {
	defer w.wg.Done()

	defer func() {
		if r := recover(); r != nil {
			// Cannot log here without feeding back into the channel
			fmt.Printf("Warning: log stream consumer panic recovered: %v\n", r)
		}
	}()

	for {
		select {
		case batch, ok := <-w.channel:
			if !ok {
				return
			}
			for _, event := range batch {
				w.broadcast(event)
			}
		case <-w.done:
			return
		}
	}
}

func (w *WebSocketWriter) broadcast(event arbormodels.LogEvent) {
	arborLevel := levels.FromLogLevel(event.Level)
	if arborLevel < w.minLevel {
		return
	}
	for _, pattern := range defaultExcludePatterns {
		if strings.Contains(event.Message, pattern) {
			return
		}
	}

	w.handler.BroadcastLog(LogEntry{
		Timestamp: event.Timestamp.Format("15:04:05"),
		Level:     mapLevel(arborLevel),
		Message:   event.Message,
	})
}

func parseLogLevel(level string) levels.LogLevel {
	switch strings.ToLower(level) {
	case "error":
		return levels.ErrorLevel
	case "warn", "warning":
		return levels.WarnLevel
	case "info":
		return levels.InfoLevel
	case "debug":
		return levels.DebugLevel
	default:
		return levels.InfoLevel
	}
}

func mapLevel(level levels.LogLevel) string {
	switch level {
	case levels.ErrorLevel:
		return "error"
	case levels.WarnLevel:
		return "warn"
	case levels.InfoLevel:
		return "info"
	case levels.DebugLevel:
		return "debug"
	default:
		return "info"
	}
}
