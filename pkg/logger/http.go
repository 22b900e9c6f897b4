/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package logger

import (
	"net/http"
	"sync"
	"time"
)

const debugAutoOff = 10 * time.Hour

// RegisterHttpHandler registers debug log switches on mux.
// Debug logging is switched off automatically after debugAutoOff.
func RegisterHttpHandler(handle func(pattern string, handler func(http.ResponseWriter, *http.Request))) {
	var (
		mu       sync.Mutex
		offTimer *time.Timer
	)
	handle("/api/log/debug/start", func(writer http.ResponseWriter, request *http.Request) {
		mu.Lock()
		SetDebugEnabled(true)
		if offTimer != nil {
			offTimer.Stop()
		}
		offTimer = time.AfterFunc(debugAutoOff, func() {
			SetDebugEnabled(false)
		})
		mu.Unlock()
		writer.Write([]byte("OK"))
	})
	handle("/api/log/debug/stop", func(writer http.ResponseWriter, request *http.Request) {
		mu.Lock()
		SetDebugEnabled(false)
		if offTimer != nil {
			offTimer.Stop()
			offTimer = nil
		}
		mu.Unlock()
		writer.Write([]byte("OK"))
	})
}
