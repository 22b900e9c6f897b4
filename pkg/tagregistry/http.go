/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package tagregistry

import (
	"encoding/json"
	"net/http"
	"time"
)

// RegisterHttpHandlers exposes the active snapshot and a manual reload switch.
func RegisterHttpHandlers(handle func(pattern string, handler func(http.ResponseWriter, *http.Request)), r *Registry, w *Watcher) {
	handle("/api/tags", func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		json.NewEncoder(writer).Encode(map[string]interface{}{
			"source":   r.source.Name(),
			"loadedAt": r.LoadedAt().Format(time.RFC3339),
			"tags":     r.Snapshot(),
		})
	})
	handle("/api/tags/reload", func(writer http.ResponseWriter, request *http.Request) {
		w.Trigger()
		writer.Write([]byte("OK"))
	})
}
