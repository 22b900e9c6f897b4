/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package appconfig

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"
)

var uptime = time.Now()

// VersionHandler reports build and runtime information.
func VersionHandler(writer http.ResponseWriter, request *http.Request) {
	r := map[string]interface{}{
		"goversion": runtime.Version(),
		"version":   ingestVersion,
		"site":      StdIngestConfig.Site,
		"uptime":    uptime.Format(time.RFC3339),
	}
	json.NewEncoder(writer).Encode(r)
}
