/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package pipeline

import (
	"context"
	"encoding/json"
	"github.com/spf13/cast"
	"net/http"
)

const defaultDeadLetterListLimit = 20

type (
	DeadLetterLister interface {
		List(ctx context.Context, limit int) ([]*DeadLetterDO, error)
	}

	deadLetterItem struct {
		BatchID   string `json:"batchId"`
		GmtCreate string `json:"gmtCreate"`
		Publisher string `json:"publisher"`
		Error     string `json:"error"`
		Count     int    `json:"count"`
	}
)

// RegisterHttpHandlers exposes the most recent dead letter batches. Payloads are not included.
func RegisterHttpHandlers(handle func(pattern string, handler func(http.ResponseWriter, *http.Request)), store DeadLetterLister) {
	handle("/api/deadletter", func(writer http.ResponseWriter, request *http.Request) {
		limit := defaultDeadLetterListLimit
		if s := request.URL.Query().Get("limit"); s != "" {
			n, err := cast.ToIntE(s)
			if err != nil || n <= 0 {
				http.Error(writer, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		dos, err := store.List(request.Context(), limit)
		if err != nil {
			http.Error(writer, err.Error(), http.StatusInternalServerError)
			return
		}
		items := make([]deadLetterItem, 0, len(dos))
		for _, do := range dos {
			items = append(items, deadLetterItem{
				BatchID:   do.BatchID,
				GmtCreate: do.GmtCreate.Format("2006-01-02T15:04:05.000Z07:00"),
				Publisher: do.Publisher,
				Error:     do.Error,
				Count:     do.Count,
			})
		}
		writer.Header().Set("Content-Type", "application/json")
		json.NewEncoder(writer).Encode(items)
	})
}
